package proc

import (
	"reflect"
	"testing"
)

func TestParsePSTable(t *testing.T) {
	out := `
    1     0 /sbin/launchd
  412     1 /usr/sbin/sshd
 8801   412 node index.js --port 3000

garbage line
  900     1
`
	records := parsePSTable(out)
	want := []record{
		{pid: 1, ppid: 0, command: "/sbin/launchd"},
		{pid: 412, ppid: 1, command: "/usr/sbin/sshd"},
		{pid: 8801, ppid: 412, command: "node index.js --port 3000"},
		{pid: 900, ppid: 1, command: ""},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("parsePSTable = %+v, want %+v", records, want)
	}
}

func TestParsePIDLines(t *testing.T) {
	out := "8801\n912\n\nnot-a-pid\n8801\n"
	got := parsePIDLines(out)
	want := []int{912, 8801, 8801}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parsePIDLines = %v, want %v", got, want)
	}
}

func TestParseNetstatListeners(t *testing.T) {
	out := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:3000           0.0.0.0:0              LISTENING       4312
  TCP    127.0.0.1:3000         127.0.0.1:51000        ESTABLISHED     4312
  TCP    [::]:3000              [::]:0                 LISTENING       4312
  TCP    0.0.0.0:8080           0.0.0.0:0              LISTENING       9100
  UDP    0.0.0.0:3000           *:*                                    2222
`
	got := parseNetstatListeners(out, 3000)
	want := []int{4312}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseNetstatListeners = %v, want %v", got, want)
	}
}

func TestDedupeSorted(t *testing.T) {
	got := dedupeSorted([]int{5, 3, 5, 1, 3})
	want := []int{1, 3, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dedupeSorted = %v, want %v", got, want)
	}
}
