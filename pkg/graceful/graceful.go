package graceful

import (
	"os"
	"os/signal"
	"syscall"
)

// Stop 阻塞直到收到中断或终止信号，然后执行 fn
func Stop(fn func()) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)
	<-done
	fn()
}
