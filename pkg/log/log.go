// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	countWidth  = 15 // Width for match count
	statusWidth = 15 // Width for status text
)

// 🎯 FileOperation is one file of a push plan
type FileOperation struct {
	Path         string // Repository path
	Status       string // Operation status
	IsModified   bool   // Whether edits changed the file
	IsMissing    bool   // Whether the file does not exist on the branch
	Replacements int    // Number of replacements made
}

// 📦 CommitOperation is one push to a repository branch
type CommitOperation struct {
	Repo    string // owner/repo
	Branch  string // Target branch
	Message string // Commit message
	DryRun  bool   // Whether the commit is only planned
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *CommitOperation
	operations []FileOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsMissing:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsModified:
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(color.FgYellow).Sprint(fmt.Sprintf("%-*s", countWidth, fmt.Sprintf("%d match(es)", op.Replacements))),
		fmt.Sprintf("%-*s", statusWidth, op.Status))
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Add to operations list
	l.operations = append(l.operations, op)

	// Format and print
	fmt.Fprintln(l.console, l.formatFileOperation(op))

	// Log to zerolog
	l.zlog.Info().
		Str("file", op.Path).
		Str("status", op.Status).
		Bool("is_modified", op.IsModified).
		Bool("is_missing", op.IsMissing).
		Int("replacements", op.Replacements).
		Msg("file operation")
}

// 📝 StartCommit starts a new commit operation
func (l *Logger) StartCommit(ctx context.Context, op CommitOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	verb := "pushing"
	if op.DryRun {
		verb = "planning"
	}
	fmt.Fprintf(l.console, "[%s %s]\n", verb,
		color.New(color.FgCyan).Sprint(op.Message))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Repo),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Branch))

	l.zlog.Info().
		Str("repo", op.Repo).
		Str("branch", op.Branch).
		Str("message", op.Message).
		Bool("dry_run", op.DryRun).
		Msg("starting commit operation")
}

// 📝 EndCommit ends the current commit operation
func (l *Logger) EndCommit(ctx context.Context, sha string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	changed := 0
	for _, op := range l.operations {
		if op.IsModified {
			changed++
		}
	}

	switch {
	case sha != "":
		fmt.Fprintf(l.console, "%s %s %s\n",
			color.New(color.FgGreen).Sprint("✓"),
			color.New(color.Bold).Sprint(shortSHA(sha)),
			color.New(color.Faint).Sprintf("%d of %d file(s) changed", changed, len(l.operations)))
	case l.currentOp.DryRun:
		fmt.Fprintf(l.console, "%s\n",
			color.New(color.Faint).Sprintf("dry run: %d of %d file(s) would change", changed, len(l.operations)))
	}

	l.zlog.Info().
		Str("repo", l.currentOp.Repo).
		Str("sha", sha).
		Int("files", len(l.operations)).
		Int("changed", changed).
		Msg("commit operation complete")

	l.currentOp = nil
	l.operations = nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Operations returns the file operations logged since the commit started
func (l *Logger) Operations() []FileOperation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]FileOperation(nil), l.operations...)
}

// 🧮 EntryTotal is how often one edit's original text occurs across the plan
type EntryTotal struct {
	Original string
	Updated  string
	Count    int
}

// 📝 LogEntry prints one edit with its match count. Edits that match nothing
// are highlighted in red.
func (l *Logger) LogEntry(ctx context.Context, e EntryTotal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	countColor := color.FgGreen
	if e.Count == 0 {
		countColor = color.FgRed
	}
	fmt.Fprintf(l.console, "%s%q -> %q: %s\n",
		fmt.Sprintf("%*s", fileIndent, ""),
		e.Original,
		e.Updated,
		color.New(countColor).Sprintf("%d match(es)", e.Count))

	l.zlog.Debug().
		Str("original", e.Original).
		Str("updated", e.Updated).
		Int("matches", e.Count).
		Msg("edit total")
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Info prints a plain informational line
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}
