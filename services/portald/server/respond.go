package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core"
	nativecommon "portalchain/native/common"
	"portalchain/services/portald/auth"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "BadRequest"})
}

// statusForKind maps a ledger error class onto an HTTP status.
func statusForKind(kind nativecommon.Kind) int {
	switch kind {
	case nativecommon.KindInvalidAmount,
		nativecommon.KindInvalidAddress,
		nativecommon.KindDeadlineExpired,
		nativecommon.KindNativeTokenNotAllowed:
		return http.StatusBadRequest
	case nativecommon.KindNotOwner,
		nativecommon.KindOwnerNotExpired,
		nativecommon.KindOwnerRevoked:
		return http.StatusForbidden
	case nativecommon.KindNotFound,
		nativecommon.KindPortalNotRegistered,
		nativecommon.KindTokenNotCreated:
		return http.StatusNotFound
	case nativecommon.KindTokenExists,
		nativecommon.KindActiveLP,
		nativecommon.KindInactiveLP,
		nativecommon.KindDurationLocked:
		return http.StatusConflict
	case nativecommon.KindInsufficientBalance,
		nativecommon.KindInsufficientToWithdraw,
		nativecommon.KindInsufficientReceived,
		nativecommon.KindInvalidOutput,
		nativecommon.KindEmptyAccount,
		nativecommon.KindDivisionByZero,
		nativecommon.KindMathOverflow:
		return http.StatusUnprocessableEntity
	case nativecommon.KindModulePaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Kind: "Cancelled"})
		return
	}
	kind := nativecommon.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger operation failed", slog.String("kind", kind.String()), slog.Any("error", err))
		writeJSON(w, status, errorResponse{Error: "internal error", Kind: kind.String()})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

// respond writes out as JSON or maps err onto its status.
func (s *Server) respond(w http.ResponseWriter, out any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// callerOf returns the authenticated caller. Protected routes always carry
// one.
func callerOf(r *http.Request) ethcommon.Address {
	caller, _ := auth.CallerFromContext(r.Context())
	return caller
}

// parseAmount parses a base-10 integer. Empty input yields nil when optional.
func parseAmount(field, raw string, optional bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("%s required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: %q is not a base-10 integer", field, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return value, nil
}

func parseAddress(field, raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("%s: %q is not an address", field, raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

// parseRecipient defaults an empty recipient to the caller.
func parseRecipient(raw string, caller ethcommon.Address) (ethcommon.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return caller, nil
	}
	return parseAddress("recipient", raw)
}

func parseInt(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return value, nil
}

// exec runs fn as a committed operation and writes its result.
func (s *Server) exec(w http.ResponseWriter, r *http.Request, op string, fn func(*core.Modules) (any, error)) {
	var out any
	err := s.runtime.Execute(r.Context(), op, func(m *core.Modules) error {
		var err error
		out, err = fn(m)
		return err
	})
	s.respond(w, out, err)
}

// view runs fn without committing and writes its result.
func (s *Server) view(w http.ResponseWriter, r *http.Request, fn func(*core.Modules) (any, error)) {
	var out any
	err := s.runtime.View(r.Context(), func(m *core.Modules) error {
		var err error
		out, err = fn(m)
		return err
	})
	s.respond(w, out, err)
}

type amountView struct {
	Amount string `json:"amount"`
}

func amountOf(value *big.Int) amountView {
	return amountView{Amount: formatAmount(value)}
}

func formatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
