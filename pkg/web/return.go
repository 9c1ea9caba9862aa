package web

import (
	"net/http"
	"strings"

	"github.com/rubiojr/carefinder/pkg/session"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

// ReturnTargets hands out the page a visitor was on before being sent to
// sign in. A target is returned once.
type ReturnTargets interface {
	ConsumeReturnTarget(key string) (string, bool, error)
}

// ReturnHandler is where the sign-in flow lands after authenticating. It
// sends the visitor back to the stored return target, or to the returnTo
// query parameter when the store has none.
func ReturnHandler(targets ReturnTargets, basePath string) http.Handler {
	if basePath == "" {
		basePath = session.DefaultBasePath
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := tiering.SessionKey(w, r)

		target := ""
		if targets != nil {
			t, ok, err := targets.ConsumeReturnTarget(key)
			if err != nil {
				logger.Warnf("reading return target: %v", err)
			} else if ok {
				target = t
			}
		}
		if target == "" {
			target = r.URL.Query().Get(tiering.ReturnParam)
		}
		if !localPath(target) {
			target = basePath
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// localPath rejects absolute and protocol relative URLs so the return
// target cannot leave the site.
func localPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
