package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCommit parses the body of a commit object: "<key> <value>" header
// lines terminated by a blank line, then the message. Continuation lines
// (a leading space, as multi-line gpgsig payloads use) are skipped. A
// missing or invalid tree header is an error; missing or unparseable
// author/committer timestamps leave the Signature's When zero so callers
// can apply their own policy.
func ParseCommit(data []byte) (*CommitRecord, error) {
	rec := &CommitRecord{}
	rest := string(data)
	for len(rest) > 0 {
		var line string
		if nl := strings.IndexByte(rest, '\n'); nl < 0 {
			line, rest = rest, ""
		} else {
			line, rest = rest[:nl], rest[nl+1:]
		}
		if line == "" {
			rec.Message = rest
			break
		}
		if line[0] == ' ' {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "tree":
			if !ValidHash(value) {
				return nil, fmt.Errorf("parse commit: invalid tree %q", value)
			}
			rec.Tree = Hash(value)
		case "parent":
			if ValidHash(value) {
				rec.Parents = append(rec.Parents, Hash(value))
			}
		case "author":
			rec.Author = parseSignature(value)
		case "committer":
			rec.Committer = parseSignature(value)
		}
	}
	if rec.Tree == "" {
		return nil, fmt.Errorf("parse commit: missing tree header")
	}
	return rec, nil
}

// parseSignature splits "Name <email> epoch offset". The epoch is the
// first field after the closing bracket; a malformed epoch or a missing
// tail yields a zero When.
func parseSignature(s string) Signature {
	sig := Signature{}
	tail := s
	if gt := strings.LastIndexByte(s, '>'); gt >= 0 {
		tail = s[gt+1:]
		head := s[:gt]
		if lt := strings.IndexByte(head, '<'); lt >= 0 {
			sig.Name = strings.TrimSpace(head[:lt])
			sig.Email = head[lt+1:]
		} else {
			sig.Name = strings.TrimSpace(head)
		}
	}

	fields := strings.Fields(tail)
	if len(fields) < 2 {
		return sig
	}
	epoch, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sig
	}
	sig.When = time.Unix(epoch, 0).In(parseZone(fields[1]))
	return sig
}

// parseZone converts "+HHMM"/"-HHMM" to a fixed-offset zone. The epoch
// already pins the instant, so a malformed token falls back to UTC
// rather than discarding the timestamp.
func parseZone(tok string) *time.Location {
	if len(tok) != 5 || (tok[0] != '+' && tok[0] != '-') {
		return time.UTC
	}
	hh, err1 := strconv.Atoi(tok[1:3])
	mm, err2 := strconv.Atoi(tok[3:5])
	if err1 != nil || err2 != nil || hh > 23 || mm > 59 {
		return time.UTC
	}
	off := (hh*60 + mm) * 60
	if tok[0] == '-' {
		off = -off
	}
	return time.FixedZone(tok, off)
}
