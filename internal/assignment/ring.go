package assignment

// Ring 员工轮转队列, 使用后移到队尾
type Ring struct {
	items []Candidate
	head  int
}

// NewRing 创建轮转队列
func NewRing(items []Candidate) *Ring {
	buf := make([]Candidate, len(items))
	copy(buf, items)
	return &Ring{items: buf}
}

// Len 队列长度
func (r *Ring) Len() int {
	if r == nil {
		return 0
	}
	return len(r.items)
}

// Peek 返回队首候选人
func (r *Ring) Peek() (Candidate, bool) {
	if r.Len() == 0 {
		return Candidate{}, false
	}
	return r.items[r.head], true
}

// Rotate 将队首移到队尾
func (r *Ring) Rotate() {
	if r.Len() == 0 {
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// Snapshot 按当前顺序返回队列内容
func (r *Ring) Snapshot() []Candidate {
	out := make([]Candidate, 0, r.Len())
	for i := 0; i < r.Len(); i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}
