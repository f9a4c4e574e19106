// Package browser opens an authorization URL in the operator's default
// browser during interactive OAuth login, adapted from the teacher's
// internal/browser package.
package browser

import (
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// Open launches url in the local default browser. Failures are logged, not
// returned, since the auth_url is always also handed back to the caller as
// a fallback for headless management clients.
func Open(url string) {
	if err := open.Run(url); err != nil {
		log.WithError(err).WithField("url", url).Debug("failed to auto-open browser for oauth login")
	}
}
