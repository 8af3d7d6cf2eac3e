package configure

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Subordinate ID ranges granted to the invoking user.
const (
	subIDFirst = 100000
	subIDCount = 65536
)

// hasSubIDEntry reports whether an /etc/subuid or /etc/subgid file already
// maps user.
func hasSubIDEntry(data []byte, user string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		owner, _, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if ok && owner == user {
			return true
		}
	}
	return false
}

// nextSubIDStart returns the first ID after every existing range, and never
// less than subIDFirst.
func nextSubIDStart(data []byte) int {
	next := subIDFirst
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), ":")
		if len(fields) != 3 {
			continue
		}
		start, err1 := strconv.Atoi(fields[1])
		count, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			continue
		}
		if end := start + count; end > next {
			next = end
		}
	}
	return next
}
