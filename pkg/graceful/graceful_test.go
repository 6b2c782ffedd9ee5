package graceful

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStop(t *testing.T) {
	stopped := make(chan struct{})
	go Stop(func() { close(stopped) })

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("stop func not called")
	}
}
