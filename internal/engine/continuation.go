package engine

import "strings"

// historyBoundaryMarker delimits replayed history output from the
// current call's own output in a sandbox's captured stdout. Source-prefix
// accumulation (spec.md §9's sanctioned fallback for sandboxes that start
// a fresh process per call, since they have no native continuation token)
// means every call recompiles and reruns the whole accumulated history,
// so earlier calls' side effects - Console.WriteLine, mainly - replay
// too. The marker lets run isolate the slice of stdout snippet is
// actually responsible for.
const historyBoundaryMarker = "ROSLYNSTONE_CALL_BOUNDARY_V1"

// historyBoundaryStatement is the raw C# statement emitted between the
// replayed history prefix and the new snippet, before rewriting.
const historyBoundaryStatement = `Console.WriteLine("ROSLYNSTONE_CALL_BOUNDARY_V1");`

// buildAccumulatedSource concatenates a session's prior successful
// snippets with the new one so the declarations and imports history
// introduced are still in scope for snippet.
func buildAccumulatedSource(history []string, snippet string) string {
	if len(history) == 0 {
		return historyBoundaryStatement + "\n" + snippet
	}
	return strings.Join(history, "\n") + "\n" + historyBoundaryStatement + "\n" + snippet
}

// currentCallOutput strips everything up to and including the last
// boundary marker, leaving only what snippet's own statements printed.
func currentCallOutput(stdout string) string {
	idx := strings.LastIndex(stdout, historyBoundaryMarker)
	if idx == -1 {
		return stdout
	}
	rest := stdout[idx+len(historyBoundaryMarker):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")
	return rest
}
