// Package hub provides the client for the hub daemon that owns device
// transport, session bookkeeping and the upload buffer.
//
// # Overview
//
// The controller never talks to devices or the backend directly. Everything it
// knows arrives through the hub's live Snapshot, and everything it wants done is
// sent to the hub as an intent. The hub's answer to an intent is not
// authoritative: apart from the conflict Disposition returned by StartSession,
// the effect of an intent is only observed through a later Snapshot.
//
// # Architecture
//
//   - types.go: wire types mirroring the hub API (states, Snapshot, Disposition,
//     buffer counters)
//   - client.go: HTTP client and the collaborator interfaces (SnapshotReader,
//     SessionService, BufferService, DeviceTransport, Hub)
//   - subscribe.go: websocket push feed of snapshots
//
// # Client Usage
//
//	client, err := hub.NewClient("127.0.0.1:7620")
//	if err != nil {
//		return err
//	}
//	snap, err := client.FetchSnapshot(ctx)
//
//	err = client.StartSession(ctx, "u1")
//	var disp *hub.Disposition
//	if errors.As(err, &disp) && disp.Kind == hub.DispositionConflict {
//		// another session holds the slot
//	}
//
// # Push Feed
//
// Subscribe blocks while the websocket is healthy, calling fn for each pushed
// snapshot in arrival order. It returns when the connection drops; callers
// decide how to back off and reconnect.
package hub
