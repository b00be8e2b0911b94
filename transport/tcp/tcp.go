package tcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"asyncmpc/transport"

	"github.com/rs/zerolog/log"
)

// maxFrame bounds a single frame; protocol messages are small, this only
// guards against corrupted length prefixes.
const maxFrame = 1 << 22

func NewTCP() transport.Transport {
	return &TCP{}
}

type TCP struct{}

func (t *TCP) CreateSocket(address string) (transport.Socket, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", address, err)
	}

	socket := &Socket{
		listener: ln,
		myAddr:   ln.Addr().String(),
		conns:    make(map[string]net.Conn),
		incoming: make(chan []byte, 1000),
		closing:  make(chan struct{}),
	}

	go socket.acceptLoop()

	return socket, nil
}

type Socket struct {
	listener net.Listener
	myAddr   string
	conns    map[string]net.Conn
	mutex    sync.Mutex
	incoming chan []byte
	closing  chan struct{}
	closed   bool
}

func (s *Socket) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
				continue
			}
		}

		go s.readLoop(conn)
	}
}

// readLoop reads length-prefixed frames until the peer hangs up.
func (s *Socket) readLoop(conn net.Conn) {
	defer conn.Close()

	for {
		frame, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Debug().Msgf("%v", err)
			}
			return
		}

		select {
		case s.incoming <- frame:
		case <-s.closing:
			return
		}
	}
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrame {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (s *Socket) Send(dest string, frame []byte, timeout time.Duration) error {
	conn, err := s.connTo(dest, timeout)
	if err != nil {
		return err
	}

	buf := make([]byte, 4+len(frame))
	binary.BigEndian.PutUint32(buf, uint32(len(frame)))
	copy(buf[4:], frame)

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	if _, err := conn.Write(buf); err != nil {
		// Drop the cached connection so the next send redials.
		s.mutex.Lock()
		delete(s.conns, dest)
		s.mutex.Unlock()
		conn.Close()
		return fmt.Errorf("writing frame to %s: %w", dest, err)
	}
	return nil
}

// connTo returns the cached connection to dest, dialing on first use.
func (s *Socket) connTo(dest string, timeout time.Duration) (net.Conn, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if conn, ok := s.conns[dest]; ok {
		return conn, nil
	}
	conn, err := net.DialTimeout("tcp", dest, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", dest, err)
	}
	s.conns[dest] = conn
	return conn, nil
}

func (s *Socket) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.incoming:
		return frame, nil
	case <-s.closing:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Socket) GetAddress() string { return s.myAddr }

func (s *Socket) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closing)
	for _, conn := range s.conns {
		conn.Close()
	}
	return s.listener.Close()
}
