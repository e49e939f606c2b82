package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
	"github.com/roach88/scripthost/internal/scriptcache"
)

// embeddedEntityScript labels entity scripts given as inline source.
const embeddedEntityScript = "EmbededEntityScript"

// maxConstructorTextSize bounds the value text in bad-constructor
// diagnostics.
const maxConstructorTextSize = 80

// entityScript is a loaded entity script.
type entityScript struct {
	origin       string
	instance     interp.Value
	lastModified time.Time
	trustOrigin  string
}

// EntityScriptInfo describes a loaded entity script.
type EntityScriptInfo struct {
	Origin       string
	TrustOrigin  string
	LastModified time.Time
}

// LoadEntityScript fetches scriptOrURL through the content cache and, on
// the owner, loads it for entityID: syntax check, a trial evaluation in a
// sandbox interpreter, then evaluation and construction under the entity's
// environment, then the instance's preload method.
//
// Failures are logged and leave no entry. Syntax errors and values that
// are not constructors put scriptOrURL on the negative cache unless it is
// a file:// URL.
func (e *Engine) LoadEntityScript(entityID entity.ID, scriptOrURL string, forceRefresh bool) {
	e.dispatch(func() {
		e.cache.Fetch(scriptOrURL, forceRefresh, func(s, contents string, isURL, ok bool) {
			e.dispatch(func() {
				e.entityScriptContentAvailable(entityID, s, contents, isURL, ok)
			})
		})
	})
}

func (e *Engine) entityScriptContentAvailable(entityID entity.ID, scriptOrURL, contents string, isURL, ok bool) {
	log := e.logger.With("entity_id", entityID, "url", scriptOrURL)
	if !ok {
		log.Warn("failed to fetch entity script")
		return
	}

	isFileURL := isURL && strings.HasPrefix(scriptOrURL, "file://")
	label := embeddedEntityScript
	if isURL {
		label = scriptOrURL
	}
	fileName := fmt.Sprintf("(EntityID:%s, %s)", entityID, label)

	if err := e.interp.CheckSyntax(contents, fileName); err != nil {
		se := fromInterpreter(err, entityID)
		log.Warn("syntax error in entity script", "error", se.Message, "line", se.Line, "column", se.Column)
		if !isFileURL {
			e.cache.MarkBad(scriptOrURL)
		}
		return
	}

	if isURL {
		e.parentURL = scriptOrURL
		defer func() { e.parentURL = "" }()
	}

	sandbox := e.interp.Sandbox()
	trial, err := sandbox.Evaluate(contents, fileName)
	if err != nil {
		e.recordUncaught(err, entityID)
		e.reportUncaught()
		return
	}

	if !sandbox.IsCallable(trial) {
		typeName, text := sandbox.Describe(trial)
		if typeName == "" {
			typeName = "empty"
		}
		if len(text) > maxConstructorTextSize {
			text = text[:maxConstructorTextSize] + "..."
		}
		se := NewBadConstructorError(entityID, scriptOrURL, typeName, text)
		log.Warn("failed to load entity script", "error", se.Message)
		if !isFileURL {
			e.cache.MarkBad(scriptOrURL)
		}
		return
	}

	var lastModified time.Time
	if isFileURL {
		if fi, err := os.Stat(scriptcache.LocalPath(scriptOrURL)); err == nil {
			lastModified = fi.ModTime()
		}
	}

	trustOrigin := e.env.TrustOrigin
	if trustOrigin == "" && isURL {
		trustOrigin = scriptOrURL
	}

	var instance interp.Value
	e.withEnvironment(Environment{EntityID: entityID, TrustOrigin: trustOrigin}, func() {
		ctor, err := e.interp.Evaluate(contents, fileName)
		if err != nil {
			e.recordUncaught(err, entityID)
			return
		}
		obj, err := e.interp.Construct(ctor)
		if err != nil {
			e.recordUncaught(err, entityID)
			return
		}
		instance = obj
	})
	if instance == nil {
		e.reportUncaught()
		return
	}

	e.entityScripts[entityID] = &entityScript{
		origin:       scriptOrURL,
		instance:     instance,
		lastModified: lastModified,
		trustOrigin:  trustOrigin,
	}
	log.Debug("entity script loaded", "trust_origin", trustOrigin)

	e.callEntityScriptMethod(entityID, "preload")
}

// UnloadEntityScript calls the entity script's unload method, removes it,
// and cancels the timers its code created.
func (e *Engine) UnloadEntityScript(entityID entity.ID) {
	e.dispatch(func() {
		e.unloadEntityScript(entityID)
	})
}

func (e *Engine) unloadEntityScript(entityID entity.ID) {
	if _, ok := e.entityScripts[entityID]; !ok {
		return
	}
	e.callEntityScriptMethod(entityID, "unload")
	delete(e.entityScripts, entityID)
	e.stopTimersMatching(func(tm *timer) bool { return tm.env.EntityID == entityID })
	e.logger.Debug("entity script unloaded", "entity_id", entityID)
}

// UnloadAllEntityScripts calls unload on every entity script, then clears
// the registry. Timers are left to the engine's own shutdown.
func (e *Engine) UnloadAllEntityScripts() {
	e.dispatch(func() {
		ids := make([]entity.ID, 0, len(e.entityScripts))
		for id := range e.entityScripts {
			ids = append(ids, id)
		}
		for _, id := range ids {
			e.callEntityScriptMethod(id, "unload")
		}
		clear(e.entityScripts)
	})
}

// RefreshFileScript reloads entityID's script when it came from a local
// file that changed on disk since it was loaded.
func (e *Engine) RefreshFileScript(entityID entity.ID) {
	e.dispatch(func() {
		e.refreshFileScript(entityID)
	})
}

func (e *Engine) refreshFileScript(entityID entity.ID) {
	// Reloading runs preload and unload, which may call back into here.
	if e.refreshing {
		return
	}
	e.refreshing = true
	defer func() { e.refreshing = false }()

	details, ok := e.entityScripts[entityID]
	if !ok || details.lastModified.IsZero() {
		return
	}

	path := scriptcache.LocalPath(details.origin)
	fi, err := os.Stat(path)
	if err != nil || !fi.ModTime().After(details.lastModified) {
		return
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("failed to read changed entity script", "entity_id", entityID, "path", path, "error", err)
		return
	}

	e.logger.Debug("reloading changed entity script", "entity_id", entityID, "path", path)
	e.unloadEntityScript(entityID)
	e.entityScriptContentAvailable(entityID, details.origin, string(contents), true, true)
}

// CallEntityScriptMethod refreshes entityID's script if its file changed,
// then calls methodName on its instance with (entityID, params...) under
// the entity's own environment. Missing scripts and methods are ignored.
func (e *Engine) CallEntityScriptMethod(entityID entity.ID, methodName string, params ...any) {
	e.dispatch(func() {
		e.callEntityScriptMethod(entityID, methodName, params...)
	})
}

func (e *Engine) callEntityScriptMethod(entityID entity.ID, methodName string, params ...any) {
	e.refreshFileScript(entityID)

	details, ok := e.entityScripts[entityID]
	if !ok {
		return
	}
	method, err := e.interp.Property(details.instance, methodName)
	if err != nil {
		e.recordUncaught(err, entityID)
		return
	}
	if !e.interp.IsCallable(method) {
		return
	}
	args := append([]any{entityID}, params...)
	e.callWithEnvironment(Environment{EntityID: entityID, TrustOrigin: details.trustOrigin}, method, details.instance, args...)
}

// EntityScript returns details of the script loaded for entityID.
func (e *Engine) EntityScript(entityID entity.ID) (EntityScriptInfo, bool) {
	type result struct {
		info EntityScriptInfo
		ok   bool
	}
	r, _ := call(e, func() result {
		d, ok := e.entityScripts[entityID]
		if !ok {
			return result{}
		}
		return result{EntityScriptInfo{Origin: d.origin, TrustOrigin: d.trustOrigin, LastModified: d.lastModified}, true}
	})
	return r.info, r.ok
}

// EntityScriptCount returns the number of loaded entity scripts.
func (e *Engine) EntityScriptCount() int {
	n, _ := call(e, func() int { return len(e.entityScripts) })
	return n
}
