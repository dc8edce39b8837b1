// Command calcclient dials the sample calculator server and runs
// through its four demonstration calls, first sequentially and then
// concurrently to show the connection is safe for pipelined use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"sync"
	"time"

	"duplexrpc/calc"
	"duplexrpc/engine"
	"duplexrpc/transport"
)

// telemetryEvent brackets a named test with a beginning/end
// send_telemetry_event notification, mirroring an RAII scope guard.
func telemetryEvent(ctx context.Context, client *calc.Client, event string, fn func() error) error {
	client.SendTelemetryEvent(ctx, calc.TelemetryInfo{
		Event: event, Type: calc.TelemetryBeginning, Success: true, Time: time.Now(),
	})
	err := fn()
	client.SendTelemetryEvent(ctx, calc.TelemetryInfo{
		Event: event, Type: calc.TelemetryEnd, Success: err == nil, Time: time.Now(),
	})
	return err
}

func test1(ctx context.Context, client *calc.Client) error {
	return telemetryEvent(ctx, client, "Test 1", func() error {
		fmt.Print("Test 1: A simple sum of 17 and 42 is... ")
		sum, err := client.SimpleSum(ctx, 17, 42)
		if err != nil {
			return err
		}
		fmt.Println(sum)
		return nil
	})
}

func test2(ctx context.Context, client *calc.Client) error {
	return telemetryEvent(ctx, client, "Test 2", func() error {
		fmt.Print("Test 2: Compute a sum of array values 17, 42, 33, -956... ")
		sum, err := client.ArraySum(ctx, []int32{17, 42, 33, -956})
		if err != nil {
			return err
		}
		fmt.Println(sum)
		return nil
	})
}

func test3(ctx context.Context, client *calc.Client) error {
	return telemetryEvent(ctx, client, "Test 3", func() error {
		fmt.Print("Test 3: A concatenation of \"Hello \" and \"World!\" is... ")
		result, err := client.StringConcatenate(ctx, "Hello ", "World!")
		if err != nil {
			return err
		}
		fmt.Printf("%q\n", result)
		return nil
	})
}

func test4(ctx context.Context, client *calc.Client) error {
	return telemetryEvent(ctx, client, "Test 4", func() error {
		fmt.Print("Test 4: Server provides a \"universal add\" method which is capable of computing 42 + 33 = ... ")
		sum, err := client.UniversalAdd(ctx,
			calc.Number{Int: 42, IsInt: true}, calc.Number{Int: 33, IsInt: true})
		if err != nil {
			return err
		}
		fmt.Println(sum.Int)

		fmt.Print("        and concatenating \"Hello \" and \"World!\"...")
		concat, err := client.UniversalAdd(ctx,
			calc.Number{Str: "Hello "}, calc.Number{Str: "World!"})
		if err != nil {
			return err
		}
		fmt.Printf("%q\n", concat.Str)

		fmt.Print("        and even returning an error code for incorrect combination of 42 and \"Hello World!\"...")
		mismatch, err := client.UniversalAdd(ctx,
			calc.Number{Int: 42, IsInt: true}, calc.Number{Str: "Hello World!"})
		if err != nil {
			return err
		}
		if mismatch.Which != calc.AddResultError {
			return errors.New("expected an error alternative for mismatched operand types")
		}
		fmt.Printf("Error %q\n", mismatch.Err.Description)
		return nil
	})
}

func main() {
	addr := flag.String("addr", "localhost:7776", "server address to dial")
	flag.Parse()

	fmt.Println("Trying to connect to the server...")
	nc, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Printf("Error occurred: %v.\n", err)
		return
	}
	fmt.Println("Client successfully connected.")

	conn := engine.New()
	if err := conn.Start(transport.NewStreamTransport(nc)); err != nil {
		fmt.Printf("Error occurred: %v.\n", err)
		return
	}
	defer conn.Stop()

	client := calc.NewClient(conn)
	ctx := context.Background()

	for _, test := range []func(context.Context, *calc.Client) error{test1, test2, test3, test4} {
		if err := test(ctx, client); err != nil {
			fmt.Printf("Error occurred: %v.\n", err)
			return
		}
	}

	time.Sleep(1 * time.Second)
	fmt.Println("\nOur sample server is re-enterable. Illustrate that by launching all our tests concurrently!")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, test := range []func(context.Context, *calc.Client) error{test1, test2, test3, test4} {
		wg.Add(1)
		go func(test func(context.Context, *calc.Client) error) {
			defer wg.Done()
			errs <- test(ctx, client)
		}(test)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			fmt.Printf("Error occurred: %v.\n", err)
			return
		}
	}

	time.Sleep(1 * time.Second)
	fmt.Println("Exiting client.")
}
