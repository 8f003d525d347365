package addresser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SchemeIPFS is the scheme of identifiers produced by an IPFS node's
// default add pipeline (CIDv0 over a dag-pb/unixfs leaf).
const SchemeIPFS = "ipfs-add"

// IPFSCommand addresses content by running
//
//	ipfs add --pin=false --only-hash -Q
//
// with the payload on stdin. Nothing is written to the repository.
type IPFSCommand struct {
	// Bin is the ipfs executable. Defaults to "ipfs".
	Bin string

	// RepoPath is exported to the child as IPFS_PATH when set.
	RepoPath string
}

// NewIPFSCommand returns an IPFSCommand for bin and repoPath.
func NewIPFSCommand(bin, repoPath string) *IPFSCommand {
	if bin == "" {
		bin = "ipfs"
	}
	return &IPFSCommand{Bin: bin, RepoPath: repoPath}
}

func (c *IPFSCommand) Scheme() string { return SchemeIPFS }

// Address runs one ipfs process per call. ctx cancellation kills the child.
func (c *IPFSCommand) Address(ctx context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", newError(KindInvalidInput, "empty payload", nil)
	}

	cmd := exec.CommandContext(ctx, c.Bin, "add", "--pin=false", "--only-hash", "-Q")
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = os.Environ()
	if c.RepoPath != "" {
		cmd.Env = append(cmd.Env, "IPFS_PATH="+c.RepoPath)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", classify(ctx, "ipfs add", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", newError(KindProcessFailure,
				fmt.Sprintf("ipfs add exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String())), err)
		}
		return "", newError(KindProcessFailure, "ipfs add", err)
	}

	cid := strings.TrimSpace(stdout.String())
	if cid == "" {
		return "", newError(KindProcessFailure, "ipfs add returned no identifier", nil)
	}
	return cid, nil
}
