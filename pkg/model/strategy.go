package model

import "strconv"

// 本地负载均衡策略
var localStrategies = []string{
	"INDIFFERENT", // 0
	"ROUND_ROBIN", // 1
	"SERVER_LOAD", // 2
}

// 云间负载均衡策略
var cloudStrategies = []string{
	"INDIFFERENT", // 0
	"ROUND_ROBIN", // 1
	"CHEAPEST",    // 2
	"CLOUD_LOAD",  // 3
}

// IsLocalStrategy 判断标签是否为合法的本地策略（名称或编号）
func IsLocalStrategy(label string) bool {
	return knownLabel(localStrategies, label)
}

// IsCloudStrategy 判断标签是否为合法的云策略（名称或编号）
func IsCloudStrategy(label string) bool {
	return knownLabel(cloudStrategies, label)
}

// LocalStrategies 返回所有本地策略名称
func LocalStrategies() []string {
	return append([]string(nil), localStrategies...)
}

// CloudStrategies 返回所有云策略名称
func CloudStrategies() []string {
	return append([]string(nil), cloudStrategies...)
}

func knownLabel(labels []string, label string) bool {
	if n, err := strconv.Atoi(label); err == nil {
		return n >= 0 && n < len(labels)
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
