package service

// ConfigPermissionGate 설정 파일의 ID 목록 기반 권한 확인. 슈퍼 관리자는 관리자이기도 하다.
type ConfigPermissionGate struct {
	admins      map[string]struct{}
	superAdmins map[string]struct{}
}

// NewConfigPermissionGate ConfigPermissionGate 생성
func NewConfigPermissionGate(adminIDs, superAdminIDs []string) *ConfigPermissionGate {
	g := &ConfigPermissionGate{
		admins:      make(map[string]struct{}, len(adminIDs)),
		superAdmins: make(map[string]struct{}, len(superAdminIDs)),
	}
	for _, id := range adminIDs {
		g.admins[id] = struct{}{}
	}
	for _, id := range superAdminIDs {
		g.superAdmins[id] = struct{}{}
	}
	return g
}

func (g *ConfigPermissionGate) IsAdmin(callerID string) bool {
	if _, ok := g.admins[callerID]; ok {
		return true
	}
	return g.IsSuperAdmin(callerID)
}

func (g *ConfigPermissionGate) IsSuperAdmin(callerID string) bool {
	_, ok := g.superAdmins[callerID]
	return ok
}
