package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/petermattis/goid"
)

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

func TestExecutor_FIFO(t *testing.T) {
	ex := NewExecutor()
	var got []int
	for i := 1; i <= 5; i++ {
		ex.Post(func() { got = append(got, i) })
	}
	ex.Stop()
	ex.Post(func() { got = append(got, 99) })

	if err := ex.Drain(); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, got); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_PostFromOtherGoroutines(t *testing.T) {
	ex := NewExecutor()
	var (
		mu  sync.Mutex
		n   int
		wg  sync.WaitGroup
		gid int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex.Post(func() {
				mu.Lock()
				n++
				gid = goid.Get()
				mu.Unlock()
			})
		}()
	}
	go func() {
		wg.Wait()
		ex.Stop()
	}()

	if err := ex.Drain(); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if n != 20 {
		t.Errorf("ran %d items, want 20", n)
	}
	if gid != goid.Get() {
		t.Errorf("items ran on goroutine %d, want %d", gid, goid.Get())
	}
}

func TestExecutor_SendToSelf(t *testing.T) {
	ex := NewExecutor()
	var sendErr error
	ex.Post(func() {
		sendErr = ex.Send(func() {})
	})
	ex.Stop()

	if err := ex.Drain(); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if !errors.Is(sendErr, ErrSendToSelf) {
		t.Errorf("Send from drain goroutine = %v, want ErrSendToSelf", sendErr)
	}
}

func TestExecutor_SendFromOtherGoroutine(t *testing.T) {
	ex := NewExecutor()
	result := make(chan error, 1)
	var ranOn int64
	go func() {
		err := ex.Send(func() { ranOn = goid.Get() })
		result <- err
		ex.Stop()
	}()

	if err := ex.Drain(); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if err := <-result; err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if ranOn != goid.Get() {
		t.Errorf("Send ran on goroutine %d, want %d", ranOn, goid.Get())
	}
}

func TestExecutor_SendPanicReturnsToSender(t *testing.T) {
	ex := NewExecutor()
	result := make(chan error, 1)
	go func() {
		result <- ex.Send(func() { panic("send boom") })
		ex.Stop()
	}()

	if err := ex.Drain(); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	var perr *PanicError
	if err := <-result; !errors.As(err, &perr) {
		t.Fatalf("Send error = %v, want *PanicError", err)
	}
	if perr.Value != "send boom" {
		t.Errorf("panic value = %v, want %q", perr.Value, "send boom")
	}
}

func TestExecutor_SendAfterStop(t *testing.T) {
	ex := NewExecutor()
	ex.Stop()
	if err := ex.Drain(); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if err := ex.Send(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Send after stop = %v, want ErrStopped", err)
	}
	if err := ex.Post(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Post after stop = %v, want ErrStopped", err)
	}
	if err := ex.Drain(); !errors.Is(err, ErrStopped) {
		t.Errorf("second Drain = %v, want ErrStopped", err)
	}
}

func TestExecutor_PanicStopsDrain(t *testing.T) {
	ex := NewExecutor()
	ranAfter := false
	ex.Post(func() { panic("boom") })
	ex.Post(func() { ranAfter = true })
	ex.Stop()

	err := ex.Drain()
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("Drain error = %v, want *PanicError", err)
	}
	if perr.Value != "boom" {
		t.Errorf("panic value = %v, want %q", perr.Value, "boom")
	}
	if len(perr.Stack) == 0 {
		t.Error("expected a captured stack")
	}
	if ranAfter {
		t.Error("drain continued past a faulted item")
	}
	select {
	case <-ex.Done():
	default:
		t.Error("executor should be torn down")
	}
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

func TestStart_WithoutExecutor(t *testing.T) {
	task := Start(context.Background(), func(ctx context.Context) (int, error) {
		return 7, nil
	})
	next := Then(context.Background(), task, func(ctx context.Context, v int, err error) (int, error) {
		return v * 6, err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := next.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if v != 42 {
		t.Errorf("v = %d, want 42", v)
	}
}

func TestThen_RunsOnError(t *testing.T) {
	boom := errors.New("boom")
	task := Completed(0, boom)
	var seen error
	next := Then(context.Background(), task, func(ctx context.Context, v int, err error) (string, error) {
		seen = err
		return "handled", nil
	})

	v, err := next.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if v != "handled" || !errors.Is(seen, boom) {
		t.Errorf("v = %q, seen = %v", v, seen)
	}
}

func TestTask_WaitCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	task := Go(func() (int, error) {
		<-block
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}
	if _, _, done := task.Result(); done {
		t.Error("task should still be pending")
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_DelayedResultOnCallerGoroutine(t *testing.T) {
	caller := goid.Get()
	var contOn int64

	v, err := Run(func(ctx context.Context) *Task[int] {
		slow := Go(func() (int, error) {
			time.Sleep(20 * time.Millisecond)
			return 21, nil
		})
		return Then(ctx, slow, func(ctx context.Context, v int, err error) (int, error) {
			contOn = goid.Get()
			return v * 2, err
		})
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if v != 42 {
		t.Errorf("v = %d, want 42", v)
	}
	if contOn != caller {
		t.Errorf("continuation ran on goroutine %d, want caller %d", contOn, caller)
	}
}

func TestRun_ContinuationsInOrder(t *testing.T) {
	var order []string
	_, err := Run(func(ctx context.Context) *Task[struct{}] {
		first := Start(ctx, func(ctx context.Context) (int, error) {
			order = append(order, "start")
			return 1, nil
		})
		Then(ctx, first, func(ctx context.Context, v int, err error) (int, error) {
			order = append(order, "a")
			return v, nil
		})
		return Then(ctx, first, func(ctx context.Context, v int, err error) (struct{}, error) {
			order = append(order, "b")
			return struct{}{}, nil
		})
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"start", "a", "b"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_TaskError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(func(ctx context.Context) *Task[int] {
		return Start(ctx, func(ctx context.Context) (int, error) { return 0, boom })
	})
	if !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want %v", err, boom)
	}
}

func TestRun_PanicInTask(t *testing.T) {
	_, err := Run(func(ctx context.Context) *Task[int] {
		return Start(ctx, func(ctx context.Context) (int, error) { panic("task boom") })
	})
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("Run error = %v, want *PanicError", err)
	}
	if perr.Value != "task boom" {
		t.Errorf("panic value = %v", perr.Value)
	}
}

func TestRun_PanicInOperation(t *testing.T) {
	_, err := Run(func(ctx context.Context) *Task[int] {
		panic(errors.New("op boom"))
	})
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("Run error = %v, want *PanicError", err)
	}
	if perr.Error() != "panic: op boom" {
		t.Errorf("Error() = %q", perr.Error())
	}
	if errors.Unwrap(perr) == nil {
		t.Error("PanicError should unwrap an error panic value")
	}
}

func TestRun_SendInsideIsRejected(t *testing.T) {
	_, err := Run(func(ctx context.Context) *Task[bool] {
		ex := FromContext(ctx)
		return Start(ctx, func(ctx context.Context) (bool, error) {
			return false, ex.Send(func() {})
		})
	})
	if !errors.Is(err, ErrSendToSelf) {
		t.Errorf("Run error = %v, want ErrSendToSelf", err)
	}
}

func TestRun_Nested(t *testing.T) {
	v, err := Run(func(ctx context.Context) *Task[int] {
		return Start(ctx, func(ctx context.Context) (int, error) {
			return Run(func(ctx context.Context) *Task[int] {
				return Completed(5, nil)
			})
		})
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if v != 5 {
		t.Errorf("v = %d, want 5", v)
	}
}
