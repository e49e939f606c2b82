// Package harness runs script host scenarios and records what happened.
//
// A scenario starts a real host (goja interpreter, SQLite-backed content
// cache, in-memory entity hub) on its own goroutine, drives it through a
// list of steps, stops it, and checks assertions against the recorded
// trace and the final state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: door_opens
//	description: "Clicking the door runs its handler under the door's identity"
//	program: |
//	  print("host ready");
//	files:
//	  door.js: |
//	    (function() {
//	      this.preload = function(id) {
//	        Script.addEventHandler(id, "clickDownOnEntity", function(id, ev) {
//	          print("clicked " + ev.button);
//	        });
//	      };
//	    })
//	remote:
//	  lamp.js: "(function() {})"
//	steps:
//	  - load_entity: { entity: "0190a3f2-...", script: "${ROOT}/door.js" }
//	  - emit: { entity: "0190a3f2-...", event: clickDownOnEntity, args: [{ button: "Primary" }] }
//	  - wait: 50ms
//	assertions:
//	  - type: trace_contains
//	    event: print
//	    message: "clicked Primary"
//	  - type: host_state
//	    expect: { entity_scripts: 1 }
//
// The host program runs as ${ROOT}/main.js. Files are written under
// ${ROOT}; remote scripts are served over HTTP at ${REMOTE}. Both
// placeholders are expanded in steps and assertions and restored in the
// trace, so traces do not depend on temporary paths or ports. /~/ include
// paths expand into ${ROOT}/lib.
//
// # Step Types
//
//   - load_entity: load an entity script (entity, script, force)
//   - unload_entity: unload an entity's script
//   - delete_entity: delete an entity upstream
//   - emit: deliver an upstream entity event (entity, event, args)
//   - call: call an entity script method (entity, method, args)
//   - evaluate: evaluate source in the host
//   - wait: let timers run for a duration
//
// Each step settles before the next one starts: pending fetches complete
// and the work they queued runs on the host.
//
// # Assertion Types
//
//   - trace_contains: an event matching the given fields was recorded
//   - trace_order: events appear in the given order
//   - trace_count: exactly count events match
//   - host_state: entity script and timer counts before shutdown
//   - final_state: a row of the content cache database matches
//
// # Trace Events
//
// The trace records steps, printed messages, script errors, warnings
// logged by the host, and lifecycle notifications, each with a sequence
// number. Frame updates are not recorded.
package harness
