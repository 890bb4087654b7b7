package models

import "strings"

// Action 解析后的动作，格式为 name(arg1, arg2)
type Action struct {
	Name string
	Args []string
	Raw  string
}

// ParseAction 解析动作字符串，没有括号时整个字符串作为名称
func ParseAction(raw string) Action {
	raw = strings.TrimSpace(raw)
	action := Action{Name: raw, Raw: raw}

	open := strings.Index(raw, "(")
	if open < 0 || !strings.HasSuffix(raw, ")") {
		return action
	}

	action.Name = strings.TrimSpace(raw[:open])
	inner := strings.TrimSpace(raw[open+1 : len(raw)-1])
	if inner == "" {
		return action
	}
	for _, arg := range strings.Split(inner, ",") {
		action.Args = append(action.Args, strings.TrimSpace(arg))
	}
	return action
}

// Arg 获取第 i 个参数，不存在时返回默认值
func (a Action) Arg(i int, def string) string {
	if i < 0 || i >= len(a.Args) {
		return def
	}
	return a.Args[i]
}

// IsExit 是否为结束执行的指令
func (a Action) IsExit() bool {
	name := strings.TrimPrefix(a.Name, "$")
	return strings.EqualFold(name, "exitAgent")
}
