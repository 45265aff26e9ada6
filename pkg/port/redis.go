package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/redcon"

	"github.com/guavadb/guava/pkg/scan"
	"github.com/guavadb/guava/pkg/storage"
)

const RedisOk = "OK"

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

var commandsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "port_commands_total",
	Help: "The total number of handled commands by name.",
}, []string{"command"})

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    [][]byte
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool     // Closes the connection if true.
	writeNil        bool     // Writes a nil value if true.
	err             *string  // Error to return if set.
	writeInt        *int     // Writes an integer value if set.
	writeBulk       []byte   // Writes a single bulk string if set.
	writeBulks      [][]byte // Writes an array of bulk strings if set.
	writeString     string   // Writes a string value if set.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(bulk []byte) redisOutput {
	return redisOutput{writeBulk: bulk}
}

func writeRedisBulks(bulks [][]byte) redisOutput {
	return redisOutput{writeBulks: bulks}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

type redisHandler struct {
	store storage.KeyValueHolder
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(store storage.KeyValueHolder) (*redisHandler, error) {
	if store == nil {
		return nil, errors.New("expected a non-nil storage")
	}
	return &redisHandler{store: store}, nil
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	command := strings.ToUpper(cmd.command)
	commandsMetric.WithLabelValues(command).Inc()
	switch command {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "SET":
		if len(cmd.args) != 2 {
			return writeRedisError(errors.New("wrong number of arguments for 'SET' command"))
		}
		if err := rh.store.Set(cmd.args[0], cmd.args[1]); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(RedisOk)
	case "GET":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'GET' command"))
		}
		if value, err := rh.store.Get(cmd.args[0]); errors.Is(err, storage.ErrKeyNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		} else {
			return writeRedisBulk(value)
		}
	case "EXISTS":
		if len(cmd.args) < 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'EXISTS' command"))
		}
		existingCount := 0
		for _, key := range cmd.args {
			if found, err := rh.store.Has(key); err != nil {
				return writeRedisError(err)
			} else if found {
				existingCount++
			}
		}
		return writeRedisInt(existingCount)
	case "DBSIZE":
		return writeRedisInt(rh.store.Len())
	case "KEYS":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'KEYS' command"))
		}
		keys := make([][]byte, 0)
		for pair := range scan.MatchGlob(cmd.args[0], rh.store.Items()) {
			keys = append(keys, pair.Key)
		}
		return writeRedisBulks(keys)
	case "DEL":
		// The skip list index never removes keys; deletion is not offered.
		return writeRedisError(errors.New("DEL is not supported by this store"))
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// write flushes a computed output onto the connection.
func (out redisOutput) write(conn redcon.Conn) {
	switch {
	case out.err != nil:
		conn.WriteError(*out.err)
	case out.writeNil:
		conn.WriteNull()
	case out.writeInt != nil:
		conn.WriteInt(*out.writeInt)
	case out.writeBulk != nil:
		conn.WriteBulk(out.writeBulk)
	case out.writeBulks != nil:
		conn.WriteArray(len(out.writeBulks))
		for _, bulk := range out.writeBulks {
			conn.WriteBulk(bulk)
		}
	default:
		conn.WriteString(out.writeString)
	}
}

// RunRedisServer starts a Redis protocol server that interacts with the provided KeyValueHolder storage.
func RunRedisServer(ctx context.Context, store storage.KeyValueHolder) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(store)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: cmd.Args[1:]}
			output := redisHandler.handle(command)
			output.write(conn)
			if output.closeConnection {
				if err := conn.Close(); err != nil {
					slog.Error("Failed to close connection.", "error", err)
				}
			}
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Debug("Connection closed.", "error", err)
			}
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		serverErr := redisServer.Close()
		storeErr := store.Close()
		if exitErr := errors.Join(serverErr, storeErr); exitErr != nil {
			return fmt.Errorf("failed to close guava: %w", exitErr)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
