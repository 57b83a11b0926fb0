package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// errorCodes maps ledger sentinels to stable machine-readable codes.
var errorCodes = []struct {
	err  error
	code string
}{
	{ledger.ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{ledger.ErrPolicyNotFound, "POLICY_NOT_FOUND"},
	{ledger.ErrGrantNotFound, "GRANT_NOT_FOUND"},
	{ledger.ErrUsageNotFound, "USAGE_NOT_FOUND"},
	{ledger.ErrAssignmentNotFound, "ASSIGNMENT_NOT_FOUND"},
	{sqlite.ErrEmployeeNotFound, "EMPLOYEE_NOT_FOUND"},
	{ledger.ErrInvalidDateRange, "INVALID_DATE_RANGE"},
	{ledger.ErrInvalidAmount, "INVALID_AMOUNT"},
	{ledger.ErrNotCurrentApprover, "NOT_CURRENT_APPROVER"},
	{ledger.ErrApprovalNotPending, "APPROVAL_NOT_PENDING"},
	{ledger.ErrInvalidDecision, "INVALID_DECISION"},
	{ledger.ErrInvalidTransition, "INVALID_TRANSITION"},
	{ledger.ErrConcurrentModification, "CONCURRENT_MODIFICATION"},
	{ledger.ErrApproverChainIncomplete, "APPROVER_CHAIN_INCOMPLETE"},
	{ledger.ErrPolicyMethodMismatch, "POLICY_METHOD_MISMATCH"},
	{ledger.ErrPolicyImmutable, "POLICY_IMMUTABLE"},
	{ledger.ErrGrantInUse, "GRANT_IN_USE"},
	{ledger.ErrInvalidPolicy, "INVALID_POLICY"},
	{ledger.ErrInvalidInput, "INVALID_INPUT"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// statusFor maps a ledger error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotCurrentApprover):
		return http.StatusForbidden
	case ledger.IsNotFound(err), errors.Is(err, sqlite.ErrEmployeeNotFound):
		return http.StatusNotFound
	case ledger.IsConflict(err):
		return http.StatusConflict
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// InsufficientBalanceDTO details a shortfall.
type InsufficientBalanceDTO struct {
	LeaveType string  `json:"leave_type"`
	Unit      string  `json:"unit"`
	Available float64 `json:"available"`
	Requested float64 `json:"requested"`
	Shortfall float64 `json:"shortfall"`
}

// writeLedgerError writes err with the status and code it maps to.
// Internal errors are logged; their text is not returned.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Code: errorCode(err)}

	var ib *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &ib):
		resp.Details = InsufficientBalanceDTO{
			LeaveType: string(ib.LeaveType),
			Unit:      string(ib.Requested.Unit),
			Available: amountValue(ib.Available),
			Requested: amountValue(ib.Requested),
			Shortfall: amountValue(ib.Shortfall),
		}
	case status == http.StatusInternalServerError:
		h.logger.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	default:
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
