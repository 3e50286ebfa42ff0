package chord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/status"
)

var (
	ErrNoViableCandidate = errorDef("chord: no alive candidate in finger table", true)

	ErrInvalidResponse = errorDef("chord: invalid response from node", false)
	ErrPeerCallFailed  = errorDef("chord: peer call failed", false)
	ErrConversion      = errorDef("chord: conversion failed", false)
	ErrNodeNotFound    = errorDef("chord: node not found", false)
	ErrInvalidIdString = errorDef("chord: invalid id string", false)

	ErrLookupNoProgress = errorDef("chord/lookup: closest preceding node did not advance the lookup", false)
	ErrLookupHopLimit   = errorDef("chord/lookup: exceeded maximum number of hops", false)
)

func InvalidResponse(peer uint64) error {
	return fmt.Errorf("%w: %d", ErrInvalidResponse, peer)
}

func NodeNotFound(id uint64) error {
	return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
}

func InvalidIdString(str string, cause error) error {
	return fmt.Errorf("%w: %q: %w", ErrInvalidIdString, str, cause)
}

func PeerCallFailed(peer uint64, cause error) error {
	return fmt.Errorf("%w: %d: %w", ErrPeerCallFailed, peer, cause)
}

func ConversionFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConversion, fmt.Sprintf(format, args...))
}

func ErrorIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for known, retryable := range retryableMap {
		if retryable && errors.Is(err, known) {
			return true
		}
	}
	return false
}

// this is needed because RPC call squash type information, so in call site with signature
// if errors.Is(err, ErrABC) will fail (but the status message still carries ErrABC.Error()).
func ErrorMapper(err error) error {
	if err == nil {
		return err
	}

	var (
		srcErr    = err.Error()
		parsedErr = err
	)

	if s, ok := status.FromError(err); ok {
		srcErr = s.Message()
	}

	if mapped, ok := errorStrMap[srcErr]; ok {
		return mapped
	}

	for str, mapped := range errorStrMap {
		if strings.HasPrefix(srcErr, str+":") {
			// keep the payload of the original message
			return fmt.Errorf("%w%s", mapped, strings.TrimPrefix(srcErr, str))
		}
	}

	return parsedErr
}

var retryableMap map[error]bool = map[error]bool{
	context.DeadlineExceeded: true,
}

var errorStrMap map[string]error = map[string]error{}

func errorDef(str string, retryable bool) error {
	err := errors.New(str)
	retryableMap[err] = retryable
	errorStrMap[str] = err
	return err
}
