// Copyright (c) KAITO authors.
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

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/exec"

	"github.com/kaito-project/examples-deployer/pkg/metrics"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
)

// ExternalToolFailure is returned when an external tool cannot be started,
// exits non-zero or runs past its deadline.
type ExternalToolFailure struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolFailure) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Tool, strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s with exit code %d", msg, e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExternalToolFailure) Unwrap() error {
	return e.Err
}

// Interface runs one external command and returns its stdout.
type Interface interface {
	Run(ctx context.Context, tool string, args ...string) ([]byte, error)
}

// Runner runs external tools with a bounded duration.
type Runner struct {
	exec    exec.Interface
	timeout time.Duration
}

var _ Interface = &Runner{}

// New returns a Runner over exec. A non-positive timeout uses consts.DefaultCommandTimeout.
func New(e exec.Interface, timeout time.Duration) *Runner {
	if e == nil {
		e = exec.New()
	}
	if timeout <= 0 {
		timeout = consts.DefaultCommandTimeout
	}
	return &Runner{exec: e, timeout: timeout}
}

func (r *Runner) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := r.exec.CommandContext(ctx, tool, args...)
	cmd.SetStdout(&stdout)
	cmd.SetStderr(&stderr)

	klog.V(2).InfoS("Running external tool", "tool", tool, "args", args)
	start := time.Now()
	err := cmd.Run()
	metrics.ObserveExternalTool(tool, time.Since(start), err)
	if err == nil {
		return stdout.Bytes(), nil
	}

	failure := &ExternalToolFailure{Tool: tool, Args: args, Stderr: stderr.String(), Err: err}
	var exitErr exec.ExitError
	if errors.As(err, &exitErr) {
		failure.ExitCode = exitErr.ExitStatus()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		failure.Err = fmt.Errorf("timed out after %s: %w", r.timeout, context.DeadlineExceeded)
	}
	klog.ErrorS(failure, "External tool failed", "tool", tool, "exitCode", failure.ExitCode)
	return stdout.Bytes(), failure
}
