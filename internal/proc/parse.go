package proc

import (
	"sort"
	"strconv"
	"strings"
)

// record is one row of the process table.
type record struct {
	pid     int
	ppid    int
	command string
}

// parsePSTable parses `ps -axo pid=,ppid=,command=` output. Rows that do not
// start with two integer columns are skipped.
func parsePSTable(out string) []record {
	var records []record
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		// ps right-aligns columns, so the ppid field may carry padding.
		rest := strings.TrimSpace(line[len(fields[0]):])
		restFields := strings.SplitN(rest, " ", 2)
		ppid, err := strconv.Atoi(strings.TrimSpace(restFields[0]))
		if err != nil {
			continue
		}
		command := ""
		if len(restFields) == 2 {
			command = strings.TrimSpace(restFields[1])
		}
		records = append(records, record{pid: pid, ppid: ppid, command: command})
	}
	return records
}

// parsePIDLines parses one PID per line, the shape produced by `lsof -t`.
func parsePIDLines(out string) []int {
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)
	return pids
}

// parseNetstatListeners extracts owning PIDs for listeners on port from
// `netstat -ano` output (Windows).
func parseNetstatListeners(out string, port int) []int {
	suffix := ":" + strconv.Itoa(port)
	seen := make(map[int]struct{})
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || !strings.EqualFold(fields[0], "TCP") {
			continue
		}
		if !strings.HasSuffix(fields[1], suffix) {
			continue
		}
		if !strings.EqualFold(fields[3], "LISTENING") {
			continue
		}
		pid, err := strconv.Atoi(fields[4])
		if err != nil || pid <= 0 {
			continue
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

func dedupeSorted(pids []int) []int {
	sort.Ints(pids)
	out := pids[:0]
	var last int
	for i, pid := range pids {
		if i > 0 && pid == last {
			continue
		}
		out = append(out, pid)
		last = pid
	}
	return out
}
