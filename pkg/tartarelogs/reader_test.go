package tartarelogs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFileReader(t *testing.T, opts ...Option) (*Reader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sut.log")
	opts = append([]Option{WithRetainedLogTimeout(60 * time.Millisecond)}, opts...)
	r, err := NewFileReader(path, sutConfig(), opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Stop() })
	return r, path
}

func waitForRecords(t *testing.T, r *Reader, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for len(r.Records()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d records buffered", len(r.Records()), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func writeThreeRecords(t *testing.T, path string) {
	t.Helper()
	appendLog(t, path, "time=1 | msg=Dolor sit | foo=1\n"+
		"time=2 | msg=Lorem ipsum | foo=3\n"+
		"time=3 | msg=Amet consectetur | foo=5\n")
}

func TestReader_WaitForMatch_AlreadyBuffered(t *testing.T) {
	r, path := startFileReader(t)
	writeThreeRecords(t, path)
	waitForRecords(t, r, 3)

	start := time.Now()
	rec, err := r.WaitForMatch(context.Background(), Template{
		"msg": regexp.MustCompile(`Lorem`),
		"foo": "3",
	}, WaitTimeout(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "Lorem ipsum", rec["msg"])
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"a buffered match must complete essentially immediately")
}

func TestReader_WaitForMatch_FutureRecord(t *testing.T) {
	r, path := startFileReader(t)

	type result struct {
		rec Record
		err error
	}
	got := make(chan result, 1)
	go func() {
		rec, err := r.WaitForMatch(context.Background(),
			Template{"msg": "late arrival"}, WaitTimeout(3*time.Second))
		got <- result{rec, err}
	}()

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "time=9 | msg=late arrival | foo=7\n")

	select {
	case res := <-got:
		require.NoError(t, res.err)
		assert.Equal(t, "7", res.rec["foo"])
	case <-time.After(4 * time.Second):
		t.Fatal("wait did not complete")
	}
}

func TestReader_WaitForMatch_StrictFirstBufferedMismatch(t *testing.T) {
	r, path := startFileReader(t)
	writeThreeRecords(t, path)
	waitForRecords(t, r, 3)

	_, err := r.WaitForMatch(context.Background(),
		Template{"msg": regexp.MustCompile(`Lorem`)},
		Strict(), WaitTimeout(500*time.Millisecond))

	var unexpected *UnexpectedRecordError
	require.True(t, errors.As(err, &unexpected),
		"strict mode must fail on the first record, not time out (got %v)", err)
	assert.Equal(t, "Dolor sit", unexpected.Record["msg"])
}

func TestReader_WaitForMatch_StrictFirstBufferedMatch(t *testing.T) {
	r, path := startFileReader(t)
	writeThreeRecords(t, path)
	waitForRecords(t, r, 3)

	rec, err := r.WaitForMatch(context.Background(),
		Template{"msg": "Dolor sit"}, Strict())
	require.NoError(t, err)
	assert.Equal(t, "1", rec["foo"])
}

func TestReader_WaitForMatch_StrictFutureMismatch(t *testing.T) {
	r, path := startFileReader(t)

	got := make(chan error, 1)
	go func() {
		_, err := r.WaitForMatch(context.Background(),
			Template{"msg": "wanted"}, Strict(), WaitTimeout(3*time.Second))
		got <- err
	}()

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "time=1 | msg=unwanted | foo=1\n")

	select {
	case err := <-got:
		var unexpected *UnexpectedRecordError
		require.True(t, errors.As(err, &unexpected), "got %v", err)
		assert.Equal(t, "unwanted", unexpected.Record["msg"])
	case <-time.After(4 * time.Second):
		t.Fatal("wait did not complete")
	}
}

func TestReader_WaitForMatch_PreexistingErrorsAggregate(t *testing.T) {
	r, path := startFileReader(t)
	appendLog(t, path, "garbage one\ngarbage two\n")

	deadline := time.Now().Add(3 * time.Second)
	for len(r.Errors()) < 2 {
		require.False(t, time.Now().After(deadline), "errors not buffered")
		time.Sleep(10 * time.Millisecond)
	}

	// Matching records do not save a wait once errors exist.
	appendLog(t, path, "time=1 | msg=fine | foo=1\n")
	waitForRecords(t, r, 1)

	_, err := r.WaitForMatch(context.Background(), Template{"msg": "fine"})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.Len(t, upstream.Errs, 2)
	assert.Contains(t, upstream.Error(), "garbage one")
	assert.Contains(t, upstream.Error(), "garbage two")
}

func TestReader_WaitForMatch_FutureError(t *testing.T) {
	r, path := startFileReader(t)

	got := make(chan error, 1)
	go func() {
		_, err := r.WaitForMatch(context.Background(),
			Template{"msg": "never"}, WaitTimeout(3*time.Second))
		got <- err
	}()

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "garbage\n")

	select {
	case err := <-got:
		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream), "got %v", err)
		assert.Len(t, upstream.Errs, 1)
	case <-time.After(4 * time.Second):
		t.Fatal("wait did not complete")
	}
}

func TestReader_WaitForMatch_TimeoutCarriesSnapshot(t *testing.T) {
	r, path := startFileReader(t)
	writeThreeRecords(t, path)
	waitForRecords(t, r, 3)

	_, err := r.WaitForMatch(context.Background(),
		Template{"msg": "no such message"}, WaitTimeout(200*time.Millisecond))

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Len(t, timeout.Records, 3)
	assert.Equal(t, "no such message", timeout.Template["msg"])
}

func TestReader_WaitForMatch_EmptyTemplateMatchesFirst(t *testing.T) {
	r, path := startFileReader(t)
	writeThreeRecords(t, path)
	waitForRecords(t, r, 3)

	rec, err := r.WaitForMatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Dolor sit", rec["msg"])
}

func TestReader_WaitForMatch_ContextCancel(t *testing.T) {
	r, _ := startFileReader(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.WaitForMatch(ctx, Template{"msg": "never"}, WaitTimeout(10*time.Second))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader_ConcurrentWaitersEachCompleteOnce(t *testing.T) {
	r, path := startFileReader(t)

	const waiters = 8
	got := make(chan error, waiters)
	for range waiters {
		go func() {
			_, err := r.WaitForMatch(context.Background(),
				Template{"msg": "fanout"}, WaitTimeout(3*time.Second))
			got <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "time=1 | msg=fanout | foo=1\n")

	for range waiters {
		select {
		case err := <-got:
			assert.NoError(t, err)
		case <-time.After(4 * time.Second):
			t.Fatal("a waiter never completed")
		}
	}
}

func TestReader_RestartClearsBuffers(t *testing.T) {
	r, path := startFileReader(t)
	writeThreeRecords(t, path)
	appendLog(t, path, "garbage\n")
	waitForRecords(t, r, 3)

	require.NoError(t, r.Start()) // defensive stop + clear
	assert.Empty(t, r.Records())
	assert.Empty(t, r.Errors())

	appendLog(t, path, "time=4 | msg=after restart | foo=4\n")
	waitForRecords(t, r, 1)
	assert.Equal(t, "after restart", r.Records()[0]["msg"])
}

func TestReader_SnapshotsAreCopies(t *testing.T) {
	r, path := startFileReader(t)
	appendLog(t, path, "time=1 | msg=snap | foo=1\n")
	waitForRecords(t, r, 1)

	snap := r.Records()
	snap[0] = Record{"tampered": true}
	assert.Equal(t, "snap", r.Records()[0]["msg"])
}

func TestReader_StopIsIdempotent(t *testing.T) {
	r, _ := startFileReader(t)
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
}

func TestReader_AutoStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sut.log")
	r, err := NewFileReader(path, sutConfig(),
		WithAutoStart(), WithRetainedLogTimeout(60*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop() })

	appendLog(t, path, "time=1 | msg=auto | foo=1\n")
	rec, err := r.WaitForMatch(context.Background(), Template{"msg": "auto"})
	require.NoError(t, err)
	assert.Equal(t, "1", rec["foo"])
}

func TestReader_StreamSource(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pr.Close(); _ = pw.Close() })

	r, err := NewStreamReader(pr, sutConfig(),
		WithRetainedLogTimeout(60*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Stop() })

	_, err = pw.WriteString("time=1 | msg=via pipe | foo=2\n")
	require.NoError(t, err)

	rec, err := r.WaitForMatch(context.Background(), Template{"foo": "2"})
	require.NoError(t, err)
	assert.Equal(t, "via pipe", rec["msg"])
}
