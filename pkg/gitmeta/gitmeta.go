// Package gitmeta extracts the provenance of a git working directory into
// a canonical structure suitable for content-addressed key derivation.
//
// The extracted metadata describes the repository's HEAD commit: author,
// committer, message, direct parents, tree id, and PGP signature. Canonical
// serializes the structure with RFC 8785 (JCS) so that two extractions of
// the same repository state always produce byte-identical output.
package gitmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/gowebpki/jcs"
)

// ErrNotARepository is returned by Extract when no git metadata exists at
// or above the given path. It is distinct from filesystem errors so callers
// can branch on it.
var ErrNotARepository = errors.New("not a git repository")

// NoRemotePlaceholder stands in for the remote URL in the display name of
// repositories with no remote configured.
const NoRemotePlaceholder = "no-remote"

// WhenLayout is the fixed timestamp format used in serialized metadata.
// Changing it would change every derived key, so it is a constant of the
// protocol, not a preference.
const WhenLayout = "2006-01-02T15:04:05-0700"

// Signature identifies a commit author or committer.
type Signature struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
	When  string `json:"When"`
}

// Metadata is the canonical provenance of a repository's HEAD commit.
type Metadata struct {
	Author       Signature `json:"Author"`
	Commit       string    `json:"Commit"`
	Committer    Signature `json:"Committer"`
	Message      string    `json:"Message"`
	PGPSignature string    `json:"PGPSignature"`
	Parents      []string  `json:"Parents"`
	Tree         string    `json:"Tree"`
}

// Canonical returns the RFC 8785 canonical JSON encoding of m. The result
// is what key derivation hashes; it must be stable across runs and
// implementations.
func (m *Metadata) Canonical() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal git metadata: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize git metadata: %w", err)
	}
	return canonical, nil
}

// Extract opens the repository at or above path and returns its display
// name ("<remote>@<short-commit>") and HEAD commit metadata.
func Extract(path string) (string, *Metadata, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return "", nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", nil, fmt.Errorf("resolve HEAD of %s: %w", path, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", nil, fmt.Errorf("read commit %s: %w", head.Hash(), err)
	}

	parents := make([]string, 0, len(commit.ParentHashes))
	for _, p := range commit.ParentHashes {
		parents = append(parents, p.String())
	}

	meta := &Metadata{
		Author: Signature{
			Email: commit.Author.Email,
			Name:  commit.Author.Name,
			When:  commit.Author.When.Format(WhenLayout),
		},
		Commit: commit.Hash.String(),
		Committer: Signature{
			Email: commit.Committer.Email,
			Name:  commit.Committer.Name,
			When:  commit.Committer.When.Format(WhenLayout),
		},
		Message:      commit.Message,
		PGPSignature: commit.PGPSignature,
		Parents:      parents,
		Tree:         commit.TreeHash.String(),
	}

	name := fmt.Sprintf("%s@%s", remoteDisplay(repo), commit.Hash.String()[:7])
	return name, meta, nil
}

// remoteDisplay renders the origin remote as "git@host:path", or the
// placeholder when the repository has no origin remote.
func remoteDisplay(repo *git.Repository) string {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return NoRemotePlaceholder
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return NoRemotePlaceholder
	}
	raw := urls[0]

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// scp-like syntax (user@host:path) or a bare path; use it as-is.
		return raw
	}
	p := u.Path
	if strings.HasPrefix(p, "/") {
		p = ":" + p[1:]
	}
	return "git@" + u.Host + p
}
