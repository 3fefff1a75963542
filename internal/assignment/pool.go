package assignment

import (
	"sort"
	"strings"
)

// Candidate 可被指派的用户
type Candidate struct {
	UserID string
	Name   string
	Role   string
	Load   int64 // 累计会话时长(秒)
}

// RoleNames 角色名配置
type RoleNames struct {
	Director string
	Manager  string
	Employee string
}

// DefaultRoleNames 默认角色名
func DefaultRoleNames() RoleNames {
	return RoleNames{Director: "director", Manager: "manager", Employee: "employee"}
}

// Pools 按角色划分的候选人池
type Pools struct {
	Directors []Candidate
	Managers  []Candidate
	Employees *Ring
}

// BuildPools 按负载升序排序并按角色划分候选人
// 负载相同时按用户 ID 排序, 保证结果确定
func BuildPools(candidates []Candidate, roles RoleNames) Pools {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Load != sorted[j].Load {
			return sorted[i].Load < sorted[j].Load
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	var pools Pools
	var employees []Candidate
	for _, c := range sorted {
		switch strings.ToLower(c.Role) {
		case strings.ToLower(roles.Director):
			pools.Directors = append(pools.Directors, c)
		case strings.ToLower(roles.Manager):
			pools.Managers = append(pools.Managers, c)
		case strings.ToLower(roles.Employee):
			employees = append(employees, c)
		}
	}
	pools.Employees = NewRing(employees)
	return pools
}

// Director 返回唯一的主管, 有多个时取第一个
func (p Pools) Director() (Candidate, bool) {
	if len(p.Directors) == 0 {
		return Candidate{}, false
	}
	return p.Directors[0], true
}

// Manager 返回第一个经理
func (p Pools) Manager() (Candidate, bool) {
	if len(p.Managers) == 0 {
		return Candidate{}, false
	}
	return p.Managers[0], true
}
