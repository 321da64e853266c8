package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spin animates message until the returned stop func is called.
func (p *Printer) Spin(message string) (stop func()) {
	frames := spinner.Globe
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(frames.FPS)
		defer ticker.Stop()

		for i := 0; ; i++ {
			frame := TitleStyle.Render(frames.Frames[i%len(frames.Frames)])
			fmt.Fprintf(p.out, "\r%s %s", frame, message)
			select {
			case <-done:
				fmt.Fprint(p.out, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
