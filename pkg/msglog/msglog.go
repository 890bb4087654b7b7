package msglog

import "sync"

// Log 有序的诊断消息缓冲区，超出容量时先丢弃最早的消息
type Log struct {
	mu      sync.Mutex
	entries []string
}

// New 创建消息日志
func New() *Log {
	return &Log{}
}

// Append 追加一条消息
func (l *Log) Append(msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
}

// Purge 只保留最近的 max 条消息，max<=0 时不做处理
func (l *Log) Purge(max int) {
	if max <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries) - max; n > 0 {
		kept := make([]string, max)
		copy(kept, l.entries[n:])
		l.entries = kept
	}
}

// Entries 返回消息副本，按追加顺序
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len 当前消息数量
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset 清空消息
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
