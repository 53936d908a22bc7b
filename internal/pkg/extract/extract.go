// Package extract 从模型返回的自由文本中尽力提取结构化字段。
// 提取失败不是错误：返回 ok=false，由调用方按"未找到"处理。
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// 预编译正则
var scorePattern = regexp.MustCompile(`Quality Score:\s*(\d+)/100`)

// 改进代码的匹配按从严到宽的顺序尝试，第一个命中的模式生效
var improvedCodePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?is)##\\s*✨\\s*Improved Code.*?```python\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?is)✨\\s*Improved Code.*?```python\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?is)Improved Code.*?```python\\s*(.*?)\\s*```"),
}

// Score 提取质量评分。标签大小写敏感，数值不在此处做范围校验，
// 越界值由存储层的约束拦截。
func Score(text string) (int, bool) {
	match := scorePattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	score, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return score, true
}

// ImprovedCode 提取改进后的代码块
func ImprovedCode(text string) (string, bool) {
	for _, pattern := range improvedCodePatterns {
		match := pattern.FindStringSubmatch(text)
		if match != nil {
			return strings.TrimSpace(match[1]), true
		}
	}
	return "", false
}
