// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

/*
Package supervisor runs the long-lived loops of eventstats under a suture v4
supervisor tree.

# Overview

	RootSupervisor ("eventstats")
	├── StreamSupervisor ("stream-layer")
	│   ├── aggregator          (aggregator role)
	│   ├── interaction-worker  (analyzer role)
	│   └── similarity-worker   (analyzer role)
	└── APISupervisor ("api-layer")
	    ├── collector-http      (collector role)
	    └── analyzer-http       (analyzer role)

A loop that returns an error is restarted with backoff. Restarted loops open
a fresh consumer and resume from the last committed offset, which is the
recovery model of every topic consumer in the system. A failing stream loop
does not take the HTTP servers down with it.

Supervisor events are logged through sutureslog into the zerolog logger; see
logging.NewSlogLogger.
*/
package supervisor
