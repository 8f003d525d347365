package addresser

import (
	"fmt"
	"time"
)

// Addresser names accepted by New.
const (
	NameIPFS     = "ipfs"
	NameIPFSHTTP = "ipfs-http"
	NameDigest   = "digest"
)

// Options selects and tunes an addresser.
type Options struct {
	Kind     string
	Bin      string        // ipfs: executable
	RepoPath string        // ipfs: IPFS_PATH
	URL      string        // ipfs-http: RPC base URL
	Timeout  time.Duration // per call; 0 disables
	Attempts int           // total attempts per item; <= 1 disables retry
	Backoff  time.Duration // first retry delay
}

// New builds the addresser described by opts, wrapped with the configured
// retry and timeout policy. The timeout bounds each attempt.
func New(opts Options) (Addresser, error) {
	var a Addresser
	switch opts.Kind {
	case NameIPFS, "":
		a = NewIPFSCommand(opts.Bin, opts.RepoPath)
	case NameIPFSHTTP:
		if opts.URL == "" {
			return nil, fmt.Errorf("addresser %q: url is required", opts.Kind)
		}
		a = NewIPFSHTTP(opts.URL, 0)
	case NameDigest:
		a = NewDigest()
	default:
		return nil, fmt.Errorf("unknown addresser %q: must be one of %s, %s, %s", opts.Kind, NameIPFS, NameIPFSHTTP, NameDigest)
	}
	a = WithTimeout(a, opts.Timeout)
	return WithRetry(a, opts.Attempts, opts.Backoff), nil
}
