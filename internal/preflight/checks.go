package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// CheckNtfy verifies the ntfy server behind topicURL answers. It never
// publishes; a HEAD on the topic is enough to prove reachability.
func CheckNtfy(ctx context.Context, topicURL string) Result {
	const name = "ntfy"

	target := strings.TrimRight(strings.TrimSpace(topicURL), "/")
	if target == "" {
		return Result{Name: name, Advisory: true, Detail: "missing topic url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, target, nil)
	if err != nil {
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 400, resp.StatusCode == http.StatusMethodNotAllowed:
		return Result{Name: name, Advisory: true, Passed: true, Detail: "Reachable"}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Advisory: true, Detail: "topic requires authentication"}
	default:
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("reachability check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess passes when path is an existing directory the
// daemon can list, create files in and traverse.
func CheckDirectoryAccess(name, path string) Result {
	path = strings.TrimSpace(path)
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Detail: path + ": " + fmt.Sprintf(format, args...)}
	}
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("missing")
	case err != nil:
		return fail("stat failed: %v", err)
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("permission denied: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: path}
}
