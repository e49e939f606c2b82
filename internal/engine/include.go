package engine

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/scripthost/internal/interp"
	"github.com/roach88/scripthost/internal/scriptcache"
)

// defaultLocationPrefix marks include paths relative to the default
// scripts location.
const defaultLocationPrefix = "/~/"

// ResolvePath resolves include against the URL of the program currently
// being evaluated, or the host program when none is. Absolute URLs are
// returned as-is; a parent without a scheme is treated as a local file.
func (e *Engine) ResolvePath(include string) string {
	s, _ := call(e, func() string { return e.resolvePath(include) })
	return s
}

func (e *Engine) resolvePath(include string) string {
	ref, err := url.Parse(include)
	if err != nil {
		return include
	}
	if ref.Scheme != "" {
		return e.expandScriptURL(include)
	}

	parent := e.parentURL
	if parent == "" {
		parent = e.origin()
	}
	pu, err := url.Parse(parent)
	if err != nil || pu.Scheme == "" {
		pu, _ = url.Parse(localFileURL(e.origin()))
	}
	return e.expandScriptURL(pu.ResolveReference(ref).String())
}

// Include evaluates each path's program in order under the environment
// installed now. Paths are resolved with ResolvePath, or under the default
// scripts location for /~/ paths. URLs included before, and file URLs
// outside the current trust origin, are skipped.
//
// With a callable callback, Include returns at once and the programs run
// on the owner when loaded, followed by callback. Without one, Include
// blocks until they have run.
func (e *Engine) Include(paths []string, callback interp.Value) {
	_, _ = call(e, func() struct{} {
		e.include(paths, callback)
		return struct{}{}
	})
}

func (e *Engine) include(paths []string, callback interp.Value) {
	if e.stoppingAll() {
		e.logger.Debug("include while shutting down is ignored", "paths", paths)
		return
	}

	var urls []string
	for _, file := range paths {
		var target string
		if strings.HasPrefix(file, defaultLocationPrefix) {
			target = scriptcache.FileURL(e.expandScriptPath(file))
			if !e.underScriptsLocation(target) {
				e.logger.Debug("skipping include outside of standard libraries", "path", file)
				continue
			}
		} else {
			target = e.resolvePath(file)
		}

		if e.includedURLs[target] {
			e.logger.Debug("ignoring previously included url", "url", target)
			continue
		}
		if err := e.checkTrust(target); err != nil {
			e.logger.Warn("include rejected", "url", target, "trust_origin", e.env.TrustOrigin, "error", err)
			continue
		}
		urls = append(urls, target)
		e.includedURLs[target] = true
	}

	env := e.env
	if e.interp.IsCallable(callback) {
		e.loader.Start(urls, func(data map[string]string) {
			e.dispatch(func() { e.evaluateIncludes(urls, data, env, callback) })
		})
		return
	}

	ch := make(chan map[string]string, 1)
	e.loader.Start(urls, func(data map[string]string) { ch <- data })
	e.evaluateIncludes(urls, <-ch, env, nil)
}

// evaluateIncludes runs loaded programs in request order. While each runs,
// relative paths resolve against its own URL.
func (e *Engine) evaluateIncludes(urls []string, data map[string]string, env Environment, callback interp.Value) {
	saved := e.parentURL
	for _, u := range urls {
		contents, ok := data[u]
		if !ok {
			e.logger.Debug("error loading file", "url", u)
			continue
		}
		e.parentURL = u
		e.withEnvironment(env, func() {
			_, _ = e.evaluate(contents, u)
		})
	}
	e.parentURL = saved

	if e.interp.IsCallable(callback) {
		e.callWithEnvironment(env, callback, nil)
	}
}

// checkTrust rejects file URLs that a program from the current trust
// origin may not include: any file URL when the origin is remote, and
// otherwise files outside both the default scripts location and the
// origin's directory.
func (e *Engine) checkTrust(target string) error {
	sandbox := e.env.TrustOrigin
	if sandbox == "" {
		return nil
	}
	tu, err := url.Parse(target)
	if err != nil || !strings.EqualFold(tu.Scheme, "file") {
		return nil
	}
	su, err := url.Parse(sandbox)
	if err != nil || !strings.EqualFold(su.Scheme, "file") {
		return NewTrustBoundaryError(target, sandbox)
	}

	dir := directoryOf(tu)
	if e.underScriptsLocation(dir) {
		return nil
	}
	if strings.HasPrefix(dir, directoryOf(su)) {
		return nil
	}
	return NewTrustBoundaryError(target, sandbox)
}

// Load asks the embedding program to start the program at loadFile by
// publishing LoadScript. Ignored from entity scripts. When this engine was
// loaded as a reload, the target's cached copy is evicted first.
func (e *Engine) Load(loadFile string) {
	e.dispatch(func() {
		if e.stoppingAll() {
			e.logger.Debug("load while shutting down is ignored", "path", loadFile)
			return
		}
		if !e.env.EntityID.IsNil() {
			e.logger.Warn("load from entity script is ignored", "path", loadFile, "entity_id", e.env.EntityID)
			return
		}
		u := e.resolvePath(loadFile)
		if e.reloading {
			e.cache.Delete(u)
		}
		publish(e, LoadScript{URL: u, Reloading: e.reloading})
	})
}

// expandScriptPath maps a /~/ path into the default scripts location.
func (e *Engine) expandScriptPath(p string) string {
	rest := strings.TrimPrefix(p, defaultLocationPrefix)
	return filepath.Join(e.scriptsLocation, filepath.FromSlash(rest))
}

// expandScriptURL expands /~/ paths and file URLs into the default
// scripts location and turns bare paths into file URLs.
func (e *Engine) expandScriptURL(raw string) string {
	if strings.HasPrefix(raw, defaultLocationPrefix) {
		return scriptcache.FileURL(e.expandScriptPath(raw))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch {
	case u.Scheme == "":
		return localFileURL(raw)
	case strings.EqualFold(u.Scheme, "file") && strings.HasPrefix(u.Path, defaultLocationPrefix):
		return scriptcache.FileURL(e.expandScriptPath(u.Path))
	}
	return raw
}

// underScriptsLocation reports whether u lies inside the default scripts
// location. Always false when none is configured.
func (e *Engine) underScriptsLocation(u string) bool {
	if e.scriptsLocation == "" {
		return false
	}
	loc := scriptcache.FileURL(filepath.Clean(e.scriptsLocation))
	return strings.HasPrefix(u, strings.TrimSuffix(loc, "/")+"/")
}

// localFileURL converts a file name to an absolute file URL. An empty
// name stands for the working directory.
func localFileURL(name string) string {
	if name == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "file:///"
		}
		return scriptcache.FileURL(wd + "/")
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}
	return scriptcache.FileURL(filepath.ToSlash(abs))
}

// directoryOf strips the file name, query and fragment from u.
func directoryOf(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	c.RawFragment = ""
	dir := c.Path
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
	}
	c.Path = dir
	c.RawPath = ""
	return c.String()
}
