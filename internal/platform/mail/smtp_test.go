package mail

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := string(buildMessage("club@example.org", "marie@example.org", "Renouvellement de votre adhésion", "Bonjour\nMarie", at))

	assert.Contains(t, msg, "From: club@example.org\r\n")
	assert.Contains(t, msg, "To: marie@example.org\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?Renouvellement_de_votre_adh=C3=A9sion?=\r\n")
	assert.Contains(t, msg, "Date: Sat, 01 Mar 2025 09:30:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nBonjour\r\nMarie\r\n"))
}

func TestSendRequiresRecipient(t *testing.T) {
	err := NewSender(Config{Host: "127.0.0.1"}).Send(context.Background(), " ", "s", "b")
	assert.ErrorIs(t, err, ErrNoRecipient)
}

// fakeSMTP accepts one session and records the DATA section.
func fakeSMTP(t *testing.T) (addr string, data func() string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	var (
		mu       sync.Mutex
		received strings.Builder
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		reply("220 fake ESMTP")
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					reply("250 queued")
					continue
				}
				mu.Lock()
				received.WriteString(line)
				mu.Unlock()
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 fake")
			case strings.HasPrefix(cmd, "DATA"):
				inData = true
				reply("354 go ahead")
			case strings.HasPrefix(cmd, "QUIT"):
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()
	return ln.Addr().String(), func() string {
		<-done
		mu.Lock()
		defer mu.Unlock()
		return received.String()
	}
}

func TestSendDeliversThroughRelay(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	sender := NewSender(Config{Host: host, Port: portNum, From: "club@example.org"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sender.Send(ctx, "marie@example.org", "Rappel", "Bonjour Marie"))

	body := data()
	assert.Contains(t, body, "To: marie@example.org")
	assert.Contains(t, body, "Bonjour Marie")
}
