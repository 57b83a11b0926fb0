/*
leavetype.go - Leave type registration and lookup

PURPOSE:
  The ledger itself treats LeaveType as an opaque code. Domain packages
  register the concrete kinds they support so that HTTP input, policy files
  and storage rows can be checked against a known set.

USAGE:
  // In timeoff/types.go
  func init() {
      ledger.RegisterLeaveType(ledger.LeaveTypeInfo{Code: Annual, Name: "Annual leave", Unit: ledger.UnitDays})
  }

  info, ok := ledger.LookupLeaveType("ANNUAL")

SEE ALSO:
  - timeoff/types.go: Concrete leave types
  - factory/policy.go: Uses the registry when parsing policy files
*/
package ledger

import (
	"sort"
	"sync"
)

// LeaveTypeInfo describes one registered kind of leave.
type LeaveTypeInfo struct {
	Code LeaveType
	Name string
	Unit Unit
	Paid bool
}

var (
	leaveTypeRegistry = make(map[LeaveType]LeaveTypeInfo)
	registryMu        sync.RWMutex
)

// RegisterLeaveType adds a leave type to the global registry.
// Call this from domain package init() functions.
func RegisterLeaveType(info LeaveTypeInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	leaveTypeRegistry[info.Code] = info
}

// LookupLeaveType finds a registered leave type by code.
func LookupLeaveType(code LeaveType) (LeaveTypeInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := leaveTypeRegistry[code]
	return info, ok
}

// ListLeaveTypes returns all registered leave types ordered by code.
func ListLeaveTypes() []LeaveTypeInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]LeaveTypeInfo, 0, len(leaveTypeRegistry))
	for _, info := range leaveTypeRegistry {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}
