package core

import (
	"context"
	"sync"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// AsyncClient provides asynchronous graph-mem operations.
//
// It wraps the synchronous Client and executes operations on their own
// goroutines; each async method returns a channel that receives the result
// once. Wait blocks until every issued operation has completed.
//
// Example:
//
//	client, _ := core.New()
//	ac := core.NewAsyncClient(client)
//	defer ac.Close()
//
//	resultChan := ac.RememberAsync(ctx, access, "User prefers Go")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// MemoryResult carries a memory operation outcome.
type MemoryResult struct {
	Memory *storage.Memory
	Error  error
}

// RecallResults carries a recall outcome.
type RecallResults struct {
	Results []RecallResult
	Error   error
}

// ReflectResults carries a reflect outcome.
type ReflectResults struct {
	Result *ReflectResult
	Error  error
}

// NewAsyncClient wraps an existing client.
func NewAsyncClient(client *Client) *AsyncClient {
	return &AsyncClient{Client: client}
}

// RememberAsync stores a memory on its own goroutine.
func (ac *AsyncClient) RememberAsync(ctx context.Context, access storage.AccessContext, content string, opts ...RememberOption) <-chan *MemoryResult {
	resultChan := make(chan *MemoryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memory, err := ac.Remember(ctx, access, content, opts...)
		resultChan <- &MemoryResult{Memory: memory, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// RecallAsync recalls memories on its own goroutine.
func (ac *AsyncClient) RecallAsync(ctx context.Context, access storage.AccessContext, query string, opts ...RecallOption) <-chan *RecallResults {
	resultChan := make(chan *RecallResults, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		results, err := ac.Recall(ctx, access, query, opts...)
		resultChan <- &RecallResults{Results: results, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// GetAsync retrieves a memory on its own goroutine.
func (ac *AsyncClient) GetAsync(ctx context.Context, access storage.AccessContext, id string) <-chan *MemoryResult {
	resultChan := make(chan *MemoryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memory, err := ac.Get(ctx, access, id)
		resultChan <- &MemoryResult{Memory: memory, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// DeleteAsync deletes a memory on its own goroutine.
func (ac *AsyncClient) DeleteAsync(ctx context.Context, access storage.AccessContext, id string) <-chan error {
	resultChan := make(chan error, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		resultChan <- ac.Delete(ctx, access, id)
		close(resultChan)
	}()

	return resultChan
}

// ReflectAsync synthesizes a reflection on its own goroutine.
func (ac *AsyncClient) ReflectAsync(ctx context.Context, access storage.AccessContext, opts ...ReflectOption) <-chan *ReflectResults {
	resultChan := make(chan *ReflectResults, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Reflect(ctx, access, opts...)
		resultChan <- &ReflectResults{Result: result, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all issued async operations complete.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for issued operations and shuts the underlying client down.
func (ac *AsyncClient) Close() error {
	ac.wg.Wait()
	return ac.Client.Close()
}
