package storage

// Role is the privilege level of an access context.
type Role string

const (
	// RoleAgent is an ordinary agent acting on its own behalf.
	RoleAgent Role = "agent"

	// RoleSupervisor can read shared and global data across agents.
	RoleSupervisor Role = "supervisor"

	// RoleSystem bypasses scope checks entirely.
	RoleSystem Role = "system"
)

// Capability strings recognized in AccessContext.Permissions.
const (
	PermReadShared  = "read_shared"
	PermWriteShared = "write_shared"
	PermReadGlobal  = "read_global"
	PermWriteGlobal = "write_global"
)

// AccessContext is the caller identity and capability bundle that accompanies
// every backend call. It is constructed per request and never persisted.
type AccessContext struct {
	// AgentID identifies the calling agent.
	AgentID string `json:"agent_id"`

	// TenantID groups agents for shared-scope visibility (optional).
	TenantID string `json:"tenant_id,omitempty"`

	// Role is the privilege level. Default agent.
	Role Role `json:"role"`

	// Permissions is the set of capability strings granted to the caller.
	Permissions []string `json:"permissions,omitempty"`

	// AllowShared expands the agent role with shared-scope reads.
	AllowShared bool `json:"allow_shared,omitempty"`

	// AllowGlobal expands the agent role with global-scope reads.
	AllowGlobal bool `json:"allow_global,omitempty"`
}

// NewAccessContext returns an agent-role context for the given agent.
func NewAccessContext(agentID string) AccessContext {
	return AccessContext{AgentID: agentID, Role: RoleAgent}
}

// HasPermission reports whether the capability string was granted.
func (a AccessContext) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// CanRead reports whether the context may read records of the given scope.
//
// Private records are always readable by their owner; ownership is checked by
// CanAccessMemory, not here.
func (a AccessContext) CanRead(scope MemoryScope) bool {
	switch scope {
	case ScopePrivate:
		return true
	case ScopeShared:
		return a.AllowShared || a.HasPermission(PermReadShared) ||
			a.Role == RoleSupervisor || a.Role == RoleSystem
	case ScopeGlobal:
		return a.AllowGlobal || a.HasPermission(PermReadGlobal) ||
			a.Role == RoleSupervisor || a.Role == RoleSystem
	}
	return false
}

// CanWrite reports whether the context may write records of the given scope.
func (a AccessContext) CanWrite(scope MemoryScope) bool {
	switch scope {
	case ScopePrivate:
		return true
	case ScopeShared:
		return a.HasPermission(PermWriteShared) ||
			a.Role == RoleSupervisor || a.Role == RoleSystem
	case ScopeGlobal:
		return a.HasPermission(PermWriteGlobal) || a.Role == RoleSystem
	}
	return false
}

// CanAccessMemory reports whether the context may see the given memory.
//
// System role sees everything. Private memories are visible to their owner
// only. Shared memories require shared-read rights and a tenant match: a
// context without a tenant sees every shared memory it may read, a context
// with a tenant sees only memories of that tenant. Global memories require
// global-read rights.
func (a AccessContext) CanAccessMemory(m *Memory) bool {
	if a.Role == RoleSystem {
		return true
	}
	switch m.Scope {
	case ScopePrivate:
		return m.AgentID == a.AgentID
	case ScopeShared:
		if !a.CanRead(ScopeShared) {
			return false
		}
		return a.TenantID == "" || a.TenantID == m.TenantID
	case ScopeGlobal:
		return a.CanRead(ScopeGlobal)
	}
	return false
}

// ReadableScopes returns the scopes the context may read, in the fixed order
// private, shared, global.
func (a AccessContext) ReadableScopes() []MemoryScope {
	scopes := []MemoryScope{ScopePrivate}
	if a.CanRead(ScopeShared) {
		scopes = append(scopes, ScopeShared)
	}
	if a.CanRead(ScopeGlobal) {
		scopes = append(scopes, ScopeGlobal)
	}
	return scopes
}
