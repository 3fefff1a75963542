package auth

import "strings"

// 角色
const (
	RoleAdmin    = "admin"
	RoleDirector = "director"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// rolePriority 多角色时取优先级最高者
var rolePriority = []string{RoleAdmin, RoleDirector, RoleManager, RoleEmployee}

// Capability 操作能力
type Capability string

const (
	CapManageWorkflows Capability = "manage_workflows"
	CapAssignTasks     Capability = "assign_tasks"
	CapReassignTasks   Capability = "reassign_tasks"
	CapArchive         Capability = "archive"
	CapGenerateTasks   Capability = "generate_tasks"
)

// capabilityMatrix 角色权限矩阵
var capabilityMatrix = map[Capability]map[string]bool{
	CapManageWorkflows: {RoleAdmin: true, RoleDirector: true, RoleManager: true},
	CapAssignTasks:     {RoleAdmin: true, RoleManager: true},
	CapReassignTasks:   {RoleAdmin: true, RoleManager: true},
	CapArchive:         {RoleAdmin: true, RoleDirector: true, RoleManager: true},
	CapGenerateTasks:   {RoleAdmin: true, RoleDirector: true, RoleManager: true},
}

// Can 判断角色是否具备某项能力
func Can(role string, capability Capability) bool {
	return capabilityMatrix[capability][strings.ToLower(role)]
}

// CanAssignTasks 是否可以自动分配任务
func CanAssignTasks(role string) bool {
	return Can(role, CapAssignTasks)
}

// CanReassignTasks 是否可以重新指派任务
func CanReassignTasks(role string) bool {
	return Can(role, CapReassignTasks)
}

// CanArchive 是否可以归档工作流
func CanArchive(role string) bool {
	return Can(role, CapArchive)
}

// CanManageWorkflows 是否可以创建、修改、删除工作流
func CanManageWorkflows(role string) bool {
	return Can(role, CapManageWorkflows)
}

// CanGenerateTasks 是否可以调用外部生成服务
func CanGenerateTasks(role string) bool {
	return Can(role, CapGenerateTasks)
}

// PrimaryRole 从多个角色中挑选优先级最高的已知角色
func PrimaryRole(roles []string) string {
	has := make(map[string]bool, len(roles))
	for _, r := range roles {
		has[strings.ToLower(r)] = true
	}
	for _, r := range rolePriority {
		if has[r] {
			return r
		}
	}
	return ""
}
