package core

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, matched with errors.Is. Modeled on the corpus's
// errdefs convention: argument-free kinds are package-level sentinels,
// kinds that carry a payload get their own struct type below.
var (
	ErrNotInitialized            = errors.New("core: workspace not initialized")
	ErrAlreadyInitialized        = errors.New("core: workspace already initialized")
	ErrUnknownBranch             = errors.New("core: unknown branch")
	ErrBranchExists              = errors.New("core: branch already exists")
	ErrCannotDeleteCurrentBranch = errors.New("core: cannot delete the current branch")
	ErrNothingToSnapshot         = errors.New("core: nothing staged to snapshot")
	ErrMissingObject             = errors.New("core: missing object")
	ErrCorruptObject             = errors.New("core: corrupt object")
	ErrLockHeld                  = errors.New("core: metadata lock held by another process")
)

// DirtyWorkspaceError reports a checkout/merge preflight failure: paths
// with unsnapshotted staged content or uncommitted working-tree edits.
type DirtyWorkspaceError struct {
	Modified   []string
	Unsnapshot []string
}

func (e *DirtyWorkspaceError) Error() string {
	return fmt.Sprintf("core: dirty workspace: %d modified, %d unsnapshot", len(e.Modified), len(e.Unsnapshot))
}

// Is reports whether target is the dirty-workspace sentinel category,
// allowing callers to match either errDirtyWorkspace or the concrete type.
func (e *DirtyWorkspaceError) Is(target error) bool {
	return target == errDirtyWorkspace
}

var errDirtyWorkspace = errors.New("core: dirty workspace")

// ConflictKind classifies why a path could not be merged automatically.
type ConflictKind string

const (
	TextConflict ConflictKind = "TextConflict"
	TypeConflict ConflictKind = "TypeConflict"
	AddAddConflict ConflictKind = "AddAdd"
	ModDelConflict ConflictKind = "ModDel"
)

// MergeConflictError reports a merge aborted cleanly because one or more
// paths could not be reconciled automatically.
type MergeConflictError struct {
	Conflicts map[string]ConflictKind
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("core: merge conflict in %d path(s)", len(e.Conflicts))
}

func (e *MergeConflictError) Is(target error) bool {
	return target == errMergeConflict
}

var errMergeConflict = errors.New("core: merge conflict")

// PathIsFileError reports that a staged path's intermediate component is
// already a file, so it cannot also be a directory prefix.
type PathIsFileError struct {
	Path string
}

func (e *PathIsFileError) Error() string {
	return fmt.Sprintf("core: path %q is a file and cannot be a directory prefix", e.Path)
}

func (e *PathIsFileError) Is(target error) bool {
	return target == errPathIsFile
}

var errPathIsFile = errors.New("core: path is a file")

// PathOutsideWorkspaceError reports a path that escapes the workspace root.
type PathOutsideWorkspaceError struct {
	Path string
}

func (e *PathOutsideWorkspaceError) Error() string {
	return fmt.Sprintf("core: path %q is outside the workspace", e.Path)
}

func (e *PathOutsideWorkspaceError) Is(target error) bool {
	return target == errPathOutsideWorkspace
}

var errPathOutsideWorkspace = errors.New("core: path outside workspace")
