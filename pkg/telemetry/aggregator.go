package telemetry

import "sort"

// NameCount is one row of a ranked breakdown: a grouping key and how many
// events carried it.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TimeRange is the capture interval covered by a summary.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Summary is a derived, recomputable view over a set of events. It is never
// authoritative state; callers recompute it from the raw event store.
type Summary struct {
	AppID              string      `json:"app_id"`
	TotalSyscalls      int         `json:"total_syscalls"`
	TotalNetworkEvents int         `json:"total_network_events"`
	TotalFileEvents    int         `json:"total_file_events"`
	TopSyscalls        []NameCount `json:"top_syscalls"`
	TopDestinations    []NameCount `json:"top_destinations"`
	TopFilePaths       []NameCount `json:"top_file_paths"`
	ProtocolBreakdown  []NameCount `json:"protocol_breakdown"`
	DirectionBreakdown []NameCount `json:"direction_breakdown"`
	TimeRange          *TimeRange  `json:"time_range,omitempty"`
}

// SummaryOptions controls summary computation.
type SummaryOptions struct {
	// AppID restricts the summary to events owned by one app. Empty means
	// all apps.
	AppID string

	// TopN is the number of rows in each ranked section. Zero or negative
	// falls back to DefaultTopN.
	TopN int
}

// DefaultTopN is the ranked-section size used when the caller does not
// specify one.
const DefaultTopN = 10

// Summarize computes a Summary over the given events. It is a pure function
// of its input: no side effects, idempotent, and independent of input order
// except for the declared tie-break (ties in a ranked section are broken by
// lexicographic order of the grouping key).
func Summarize(events []Event, opts SummaryOptions) *Summary {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	summary := &Summary{AppID: opts.AppID}

	syscalls := make(map[string]int)
	destinations := make(map[string]int)
	filePaths := make(map[string]int)
	protocols := make(map[string]int)
	directions := make(map[string]int)

	var start, end string
	for _, event := range events {
		if opts.AppID != "" && event.Owner() != opts.AppID {
			continue
		}

		ts := event.Occurred()
		if ts != "" {
			if start == "" || ts < start {
				start = ts
			}
			if ts > end {
				end = ts
			}
		}

		switch ev := event.(type) {
		case SyscallEvent:
			summary.TotalSyscalls++
			if ev.SyscallName != "" {
				syscalls[ev.SyscallName]++
			}
		case NetworkEvent:
			summary.TotalNetworkEvents++
			if dst := ev.Destination(); dst != "" {
				destinations[dst]++
			}
			if ev.Protocol != "" {
				protocols[ev.Protocol]++
			}
			if ev.Direction != "" {
				directions[ev.Direction]++
			}
		case FileEvent:
			summary.TotalFileEvents++
			if ev.Path != "" {
				filePaths[ev.Path]++
			}
		}
	}

	summary.TopSyscalls = rank(syscalls, topN)
	summary.TopDestinations = rank(destinations, topN)
	summary.TopFilePaths = rank(filePaths, topN)
	summary.ProtocolBreakdown = rank(protocols, topN)
	summary.DirectionBreakdown = rank(directions, topN)

	if start != "" {
		summary.TimeRange = &TimeRange{Start: start, End: end}
	}

	return summary
}

// Collect flattens typed event slices into a single []Event for Summarize.
func Collect(syscalls []SyscallEvent, network []NetworkEvent, files []FileEvent) []Event {
	events := make([]Event, 0, len(syscalls)+len(network)+len(files))
	for _, e := range syscalls {
		events = append(events, e)
	}
	for _, e := range network {
		events = append(events, e)
	}
	for _, e := range files {
		events = append(events, e)
	}
	return events
}

// rank converts a count map into its top-N rows, sorted by descending count
// with lexicographic tie-break for reproducibility. Always returns a
// non-nil slice so JSON encodes an empty array, never null.
func rank(counts map[string]int, topN int) []NameCount {
	rows := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, NameCount{Name: name, Count: count})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})

	if len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}
