// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package resources bundles the TSP helper scripts the REPL uploads to the
// instrument at startup.
package resources

import (
	_ "embed"
	"strings"
)

// versionToken is substituted at render time with the running binary's
// version string.
const versionToken = "!<!<VERSION>!>!"

//go:embed kic_common.tsp
var kicCommonSource string

//go:embed tsp_link_nodes.tsp
var tspLinkNodesSource string

// KicCommon renders the common helper script, replacing the version token
// with version.
func KicCommon(version string) string {
	return strings.ReplaceAll(kicCommonSource, versionToken, version)
}

// TspLinkNodes renders the node-discovery script.
func TspLinkNodes(version string) string {
	return strings.ReplaceAll(tspLinkNodesSource, versionToken, version)
}
