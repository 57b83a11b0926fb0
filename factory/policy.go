/*
Package factory converts between policy definitions on the wire or on disk
and ledger.Policy values.

PURPOSE:
  HR defines policies in JSON (admin API) or YAML (startup file) without
  code changes; the factory turns those definitions into validated
  ledger.Policy structs and back.

JSON SCHEMA:
  {
    "id": "annual",
    "name": "Annual leave",
    "leave_type": "ANNUAL",
    "method": "REPEAT",
    "amount": 15,
    "unit": "days",
    "approval_required_count": 0,
    "recurrence": {"unit": "YEAR", "interval": 1},
    "expiration": {"kind": "END_OF_YEAR"},
    "effective": {"kind": "DEFERRED", "delay_days": 30}
  }

YAML FILE:
  policies:
    - id: annual
      leave_type: annual
      method: repeat
      amount: 15
      recurrence: {unit: year, interval: 1}
      expiration: {kind: end_of_year}
  holidays:
    - id: new-year
      date: "2000-01-01"
      name: New Year's Day
      recurring: true

  Enum values are case-insensitive. A missing unit defaults to the leave
  type's registered unit.

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(jsonString)

  bundle, err := f.LoadPolicyFile("./policies.yaml")
  for _, p := range bundle.Policies {
      svc.DefinePolicy(ctx, p)
  }

SEE ALSO:
  - ledger/policy.go: Policy type and validation
  - timeoff/policies.go: Go-based policy presets
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// PolicyJSON is the wire and file representation of a policy.
type PolicyJSON struct {
	ID                    string          `json:"id" yaml:"id" validate:"required,max=64"`
	Name                  string          `json:"name,omitempty" yaml:"name,omitempty"`
	LeaveType             string          `json:"leave_type" yaml:"leave_type" validate:"required"`
	Method                string          `json:"method" yaml:"method" validate:"required,oneof=MANUAL ON_REQUEST REPEAT manual on_request repeat"`
	Amount                float64         `json:"amount,omitempty" yaml:"amount,omitempty" validate:"gte=0"`
	Unit                  string          `json:"unit,omitempty" yaml:"unit,omitempty" validate:"omitempty,oneof=days hours"`
	ApprovalRequiredCount int             `json:"approval_required_count,omitempty" yaml:"approval_required_count,omitempty" validate:"gte=0,lte=5"`
	Recurrence            *RecurrenceJSON `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
	Expiration            ExpirationJSON  `json:"expiration" yaml:"expiration"`
	Effective             *EffectiveJSON  `json:"effective,omitempty" yaml:"effective,omitempty"`
}

type RecurrenceJSON struct {
	Unit     string `json:"unit" yaml:"unit" validate:"required"`
	Interval int    `json:"interval" yaml:"interval" validate:"gt=0"`
}

type ExpirationJSON struct {
	Kind string `json:"kind" yaml:"kind" validate:"required"`
	N    int    `json:"n,omitempty" yaml:"n,omitempty" validate:"gte=0"`
}

type EffectiveJSON struct {
	Kind      string `json:"kind" yaml:"kind"`
	DelayDays int    `json:"delay_days,omitempty" yaml:"delay_days,omitempty" validate:"gte=0"`
}

// HolidayJSON is a holiday entry in a policy file.
type HolidayJSON struct {
	ID        string `json:"id" yaml:"id"`
	Date      string `json:"date" yaml:"date"`
	Name      string `json:"name" yaml:"name"`
	Recurring bool   `json:"recurring,omitempty" yaml:"recurring,omitempty"`
}

// PolicyFile is the layout of a YAML policy file.
type PolicyFile struct {
	Policies []PolicyJSON  `yaml:"policies"`
	Holidays []HolidayJSON `yaml:"holidays"`
}

// Bundle is a parsed and validated policy file.
type Bundle struct {
	Policies []ledger.Policy
	Holidays []ledger.Holiday
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts policy definitions to ledger policies.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*ledger.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("%w: failed to parse policy JSON: %v", ledger.ErrInvalidPolicy, err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated ledger.Policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*ledger.Policy, error) {
	// Leave types come from the registry (timeoff registers on init)
	leaveType, err := timeoff.ParseLeaveType(pj.LeaveType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidPolicy, err)
	}

	unit := timeoff.UnitOf(leaveType)
	if pj.Unit != "" {
		unit = ledger.Unit(strings.ToLower(pj.Unit))
	}

	policy := &ledger.Policy{
		ID:                    ledger.PolicyID(pj.ID),
		Name:                  pj.Name,
		LeaveType:             leaveType,
		Method:                ledger.IssuanceMethod(upper(pj.Method)),
		Amount:                ledger.NewAmount(pj.Amount, unit),
		ApprovalRequiredCount: pj.ApprovalRequiredCount,
		Expiration: ledger.ExpirationRule{
			Kind: ledger.ExpirationKind(upper(pj.Expiration.Kind)),
			N:    pj.Expiration.N,
		},
		Effective: ledger.EffectiveRule{Kind: ledger.EffectiveImmediate},
	}
	if pj.Recurrence != nil {
		policy.Recurrence = &ledger.Recurrence{
			Unit:     ledger.RecurrenceUnit(upper(pj.Recurrence.Unit)),
			Interval: pj.Recurrence.Interval,
		}
	}
	if pj.Effective != nil && pj.Effective.Kind != "" {
		policy.Effective = ledger.EffectiveRule{
			Kind:      ledger.EffectiveKind(upper(pj.Effective.Kind)),
			DelayDays: pj.Effective.DelayDays,
		}
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// ToJSON converts a Policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(p ledger.Policy) PolicyJSON {
	amount, _ := p.Amount.Value.Float64()
	pj := PolicyJSON{
		ID:                    string(p.ID),
		Name:                  p.Name,
		LeaveType:             string(p.LeaveType),
		Method:                string(p.Method),
		Amount:                amount,
		Unit:                  string(p.Amount.Unit),
		ApprovalRequiredCount: p.ApprovalRequiredCount,
		Expiration: ExpirationJSON{
			Kind: string(p.Expiration.Kind),
			N:    p.Expiration.N,
		},
	}
	if p.Recurrence != nil {
		pj.Recurrence = &RecurrenceJSON{Unit: string(p.Recurrence.Unit), Interval: p.Recurrence.Interval}
	}
	if p.Effective.Kind != "" {
		pj.Effective = &EffectiveJSON{Kind: string(p.Effective.Kind), DelayDays: p.Effective.DelayDays}
	}
	return pj
}

// =============================================================================
// POLICY FILES
// =============================================================================

// LoadPolicyFile reads and validates a YAML policy file.
func (f *PolicyFactory) LoadPolicyFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	bundle, err := f.ParsePolicyFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bundle, nil
}

// ParsePolicyFile parses YAML policy file content. Policy ids must be unique.
func (f *PolicyFactory) ParsePolicyFile(data []byte) (*Bundle, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse policy file: %v", ledger.ErrInvalidPolicy, err)
	}

	bundle := &Bundle{}
	seen := make(map[string]bool, len(file.Policies))
	for i, pj := range file.Policies {
		if seen[pj.ID] {
			return nil, fmt.Errorf("%w: duplicate policy id %q", ledger.ErrInvalidPolicy, pj.ID)
		}
		seen[pj.ID] = true

		policy, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}
		bundle.Policies = append(bundle.Policies, *policy)
	}

	for i, hj := range file.Holidays {
		d, err := ledger.ParseDate(hj.Date)
		if err != nil {
			return nil, fmt.Errorf("holidays[%d]: %w", i, err)
		}
		id := hj.ID
		if id == "" {
			id = hj.Date
		}
		bundle.Holidays = append(bundle.Holidays, ledger.Holiday{
			ID:        id,
			Date:      d,
			Name:      hj.Name,
			Recurring: hj.Recurring,
		})
	}
	return bundle, nil
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
