/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}

// ValidationError covers malformed or insufficient setup input. Nothing is
// mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a reference to a nonexistent game or participant.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return "no active " + e.Kind
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// AlreadyTakenError means another active session claimed the slot first.
type AlreadyTakenError struct {
	PlayerName string
}

func (e *AlreadyTakenError) Error() string {
	return fmt.Sprintf("character %q is already taken by another player", e.PlayerName)
}

// InsufficientSupplyError reports an assignment attempt without enough
// items or locations, naming the short pool and the shortfall.
type InsufficientSupplyError struct {
	Pool   string
	Needed int
	Have   int
}

func (e *InsufficientSupplyError) Error() string {
	return fmt.Sprintf("not enough %s: need %d, have %d (short by %d)",
		e.Pool, e.Needed, e.Have, e.Needed-e.Have)
}

// NoCandidatesError means an assignment run found no joined, unassigned
// participants to work on.
type NoCandidatesError struct{}

func (e *NoCandidatesError) Error() string {
	return "no participants eligible for assignment"
}

// StorageError wraps a failed storage operation. The layered store recovers
// these internally; they never reach a user.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// duplicateAssignmentError signals a broken shuffle. It is an engine bug,
// surfaced fatally rather than retried.
type duplicateAssignmentError struct {
	Pool  string
	Value string
}

func (e *duplicateAssignmentError) Error() string {
	return fmt.Sprintf("assignment engine produced duplicate %s %q", e.Pool, e.Value)
}
