package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// EMPLOYEES - Directory backing approver chains
// =============================================================================

// Employee is a directory entry. ManagerID links the approval hierarchy.
type Employee struct {
	ID        ledger.OwnerID
	Name      string
	Email     string
	ManagerID ledger.OwnerID
	HireDate  ledger.Date
	CreatedAt time.Time
}

var ErrEmployeeNotFound = errors.New("employee not found")

// SaveEmployee creates or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, e Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, manager_id, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			manager_id = excluded.manager_id,
			hire_date = excluded.hire_date
	`, e.ID, e.Name, e.Email, nullString(string(e.ManagerID)), formatDate(e.HireDate), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", e.ID, err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id ledger.OwnerID) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, id)
}

func (s *Store) getEmployee(ctx context.Context, id ledger.OwnerID) (*Employee, error) {
	var (
		e                   Employee
		managerID           sql.NullString
		hireDate, createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, manager_id, hire_date, created_at
		FROM employees WHERE id = ?
	`, id).Scan(&e.ID, &e.Name, &e.Email, &managerID, &hireDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	e.ManagerID = ledger.OwnerID(managerID.String)
	if e.HireDate, err = parseDate(hireDate); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// ListEmployees returns all employees ordered by ID.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var ids []ledger.OwnerID
	for rows.Next() {
		var id ledger.OwnerID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	employees := make([]Employee, 0, len(ids))
	for _, id := range ids {
		e, err := s.getEmployee(ctx, id)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	return employees, nil
}

// ApproverChain implements ledger.Directory by walking manager links
// upwards from owner. A missing or cyclic link before n approvers are
// found is ErrApproverChainIncomplete.
func (s *Store) ApproverChain(ctx context.Context, owner ledger.OwnerID, n int) ([]ledger.OwnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[ledger.OwnerID]bool{owner: true}
	chain := make([]ledger.OwnerID, 0, n)
	current := owner
	for len(chain) < n {
		e, err := s.getEmployee(ctx, current)
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, fmt.Errorf("%w: %s is not in the directory", ledger.ErrApproverChainIncomplete, current)
		}
		if err != nil {
			return nil, err
		}
		if e.ManagerID == "" || seen[e.ManagerID] {
			return nil, fmt.Errorf("%w: %s has %d approvers, need %d",
				ledger.ErrApproverChainIncomplete, owner, len(chain), n)
		}
		seen[e.ManagerID] = true
		chain = append(chain, e.ManagerID)
		current = e.ManagerID
	}
	return chain, nil
}
