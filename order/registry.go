package order

import "sync"

// Registry 父订单查找表。SpecificOrder 只持有 ParentID（弱引用），
// 通过此表回查 GeneralOrder，避免父子互相持有造成的所有权环。
type Registry struct {
	mu      sync.RWMutex
	parents map[string]*GeneralOrder
}

// NewRegistry 创建查找表。
func NewRegistry() *Registry {
	return &Registry{parents: make(map[string]*GeneralOrder)}
}

// Register 登记父订单。
func (r *Registry) Register(g *GeneralOrder) {
	if g == nil || g.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parents[g.ID] = g
}

// Lookup 按 ID 回查父订单。
func (r *Registry) Lookup(id string) (*GeneralOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.parents[id]
	return g, ok
}

// Parent 返回具体订单的父订单；无父订单或未登记时第二个返回值为 false。
func (r *Registry) Parent(o *SpecificOrder) (*GeneralOrder, bool) {
	if o == nil || o.ParentID == "" {
		return nil, false
	}
	return r.Lookup(o.ParentID)
}

// Remove 注销父订单；不存在时为空操作。
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parents, id)
}
