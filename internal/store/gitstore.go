package store

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// GitTokenStore wraps a FileCredentialStore and commits every mutation to a
// local git repository (optionally pushing to a remote), giving operators an
// audit trail of credential changes. Selected via
// config.Storage.Backend == "git".
type GitTokenStore struct {
	*FileCredentialStore
	repo     *git.Repository
	auth     *http.BasicAuth
	remote   string
	localDir string
}

// NewGitTokenStore opens (or clones, or initializes) a git repository at
// localDir backing the credential files, and returns a store that commits
// after every Save/Delete.
func NewGitTokenStore(localDir, remoteURL, user, password string) (*GitTokenStore, error) {
	fileStore, err := NewFileCredentialStore(localDir)
	if err != nil {
		return nil, err
	}

	var basicAuth *http.BasicAuth
	if user != "" {
		basicAuth = &http.BasicAuth{Username: user, Password: password}
	}

	repo, err := git.PlainOpen(localDir)
	if err != nil {
		if err != git.ErrRepositoryNotExists {
			return nil, apierror.Storage(err, "failed to open git credential store at %s", localDir)
		}
		if remoteURL != "" {
			cloneOpts := &git.CloneOptions{URL: remoteURL}
			if basicAuth != nil {
				cloneOpts.Auth = basicAuth
			}
			repo, err = git.PlainClone(localDir, false, cloneOpts)
			if err != nil {
				return nil, apierror.Storage(err, "failed to clone git credential store from %s", remoteURL)
			}
		} else {
			repo, err = git.PlainInit(localDir, false)
			if err != nil {
				return nil, apierror.Storage(err, "failed to initialize git credential store at %s", localDir)
			}
		}
	}

	return &GitTokenStore{FileCredentialStore: fileStore, repo: repo, auth: basicAuth, remote: remoteURL, localDir: localDir}, nil
}

func (g *GitTokenStore) commit(message string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return apierror.Storage(err, "git credential store: failed to access worktree")
	}
	if _, err := wt.Add("."); err != nil {
		return apierror.Storage(err, "git credential store: failed to stage changes")
	}
	status, err := wt.Status()
	if err != nil {
		return apierror.Storage(err, "git credential store: failed to read status")
	}
	if status.IsClean() {
		return nil
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "cliproxy-gateway", Email: "gateway@local", When: time.Now()},
	})
	if err != nil {
		return apierror.Storage(err, "git credential store: failed to commit")
	}
	if g.remote != "" {
		pushOpts := &git.PushOptions{}
		if g.auth != nil {
			pushOpts.Auth = g.auth
		}
		if err := g.repo.Push(pushOpts); err != nil && err != git.NoErrAlreadyUpToDate {
			return apierror.Storage(err, "git credential store: failed to push")
		}
	}
	return nil
}

func (g *GitTokenStore) Save(c *Credential) error {
	if err := g.FileCredentialStore.Save(c); err != nil {
		return err
	}
	return g.commit(fmt.Sprintf("save credential %s", c.ID))
}

func (g *GitTokenStore) Delete(id string) error {
	if err := g.FileCredentialStore.Delete(id); err != nil {
		return err
	}
	return g.commit(fmt.Sprintf("delete credential %s", id))
}

func (g *GitTokenStore) DeleteByProvider(p Provider) (int, error) {
	n, err := g.FileCredentialStore.DeleteByProvider(p)
	if err != nil {
		return n, err
	}
	if n > 0 {
		if cerr := g.commit(fmt.Sprintf("delete credentials for provider %s", p)); cerr != nil {
			return n, cerr
		}
	}
	return n, nil
}
