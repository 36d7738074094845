// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command shmq-demo runs a host and a subscriber over one file-backed
// shared region and reports the delivery round-trip. The host keeps a
// bounded ring of payload buffers tracked by a free list, posts tagged
// frames and runs the maintenance tick; the subscriber fetches,
// verifies and acknowledges them.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"code.hybscloud.com/shmq"
	"code.hybscloud.com/shmq/shmfile"
	"golang.org/x/sync/errgroup"
)

const queueID = 1

var (
	path     = flag.String("path", "/dev/shm/shmq-demo", "shared region file")
	size     = flag.Int("size", 1<<20, "region size in bytes")
	capacity = flag.Int("cap", 10, "queue capacity in messages")
	count    = flag.Int("count", 1000, "messages to deliver")
	payload  = flag.Int("payload", 1024, "payload bytes per message")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("shmq-demo: ")
	if *capacity < 2 || *payload < 8 || *count < 1 {
		log.Fatal("need -cap >= 2, -payload >= 8, -count >= 1")
	}

	region, err := shmfile.Create(*path, *size)
	if err != nil {
		log.Fatal(err)
	}
	defer os.Remove(*path)
	defer region.Close()

	host, err := shmq.NewHost(region.Bytes())
	if err != nil {
		log.Fatal(err)
	}
	defer host.Close()
	queue, err := host.AddQueue(queueID, *capacity)
	if err != nil {
		log.Fatal(err)
	}
	host.Start()

	// One payload buffer per ring slot, allocated up front: the arena is
	// monotonic, so buffers are reused, never reallocated. The free list
	// holds indices of buffers safe to overwrite; inflight remembers the
	// post order so completed heads return their buffer.
	buffers := make([]*shmq.Memory, *capacity)
	free := lfq.NewSPSCIndirect(*capacity)
	inflight := lfq.NewSPSCIndirect(*capacity)
	for i := range buffers {
		m, err := host.Alloc(*payload)
		if err != nil {
			log.Fatal(err)
		}
		buffers[i] = m
		free.Enqueue(uintptr(i))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	start := time.Now()

	g.Go(func() error {
		return runHost(ctx, host, queue, buffers, free, inflight)
	})
	g.Go(func() error {
		return runSubscriber(ctx, region.Bytes())
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Print("interrupted")
			return
		}
		log.Fatal(err)
	}
	log.Printf("delivered %d messages of %d bytes in %v",
		*count, *payload, time.Since(start).Round(time.Millisecond))
}

func runHost(ctx context.Context, host *shmq.Host, queue *shmq.Queue,
	buffers []*shmq.Memory, free, inflight *lfq.SPSCIndirect) error {
	backoff := iox.Backoff{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if on, _ := queue.Subscribers(); on != 0 {
			break
		}
		host.Tick()
		backoff.Wait()
	}
	backoff.Reset()

	posted, completed := 0, 0
	for completed < *count {
		if err := ctx.Err(); err != nil {
			return err
		}
		if posted < *count {
			if idx, err := free.Dequeue(); err == nil {
				buf := buffers[idx]
				binary.LittleEndian.PutUint64(buf.Bytes(), uint64(posted))
				switch err := queue.Post(uint64(posted), buf); {
				case err == nil:
					inflight.Enqueue(idx)
					posted++
					backoff.Reset()
				case shmq.IsWouldBlock(err):
					free.Enqueue(idx)
					backoff.Wait()
				default:
					return err
				}
			}
		}
		before := queue.Outstanding()
		host.Tick()
		for range before - queue.Outstanding() {
			if idx, err := inflight.Dequeue(); err == nil {
				free.Enqueue(idx)
			}
			completed++
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func runSubscriber(ctx context.Context, region []byte) error {
	client, err := shmq.NewClient(region)
	if err != nil {
		return err
	}
	sub, err := client.Subscribe(queueID)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	backoff := iox.Backoff{}
	for received := 0; received < *count; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !client.SessionValid() {
			return errors.New("host session lost")
		}
		msg, err := sub.Fetch()
		if shmq.IsWouldBlock(err) {
			backoff.Wait()
			continue
		}
		if err != nil {
			return err
		}
		backoff.Reset()
		if got := binary.LittleEndian.Uint64(msg.Data); got != msg.Tag {
			return fmt.Errorf("frame %d carries payload %d", msg.Tag, got)
		}
		if err := sub.Ack(); err != nil {
			return err
		}
		received++
	}
	return nil
}
