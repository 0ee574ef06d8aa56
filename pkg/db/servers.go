package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

var ErrServerNotFound = errors.New("server settings not found")

// Server holds the Alpaca server settings for a profile.
type Server struct {
	ID                int64
	ProfileID         int64
	Host              string
	ControlPort       int
	DiscoveryPort     int
	DiscoveryInterval time.Duration
	PollInterval      time.Duration
	DeviceTimeout     time.Duration
	ServerName        string
	Manufacturer      string
	Location          string
	UniqueID          string
	UpdatedAt         time.Time
}

// DefaultServer returns the settings written at first run.
func DefaultServer() Server {
	return Server{
		Host:              "0.0.0.0",
		ControlPort:       11111,
		DiscoveryPort:     32227,
		DiscoveryInterval: 30 * time.Second,
		PollInterval:      2 * time.Second,
		DeviceTimeout:     2 * time.Second,
		ServerName:        "Alpaca switch server",
		Manufacturer:      "alpacaswitch",
	}
}

// Address returns the HTTP listen address (host:port).
func (s *Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.ControlPort))
}

// ServerStore reads and writes server settings.
type ServerStore interface {
	Get(ctx context.Context, profileID int64) (*Server, error)
	Create(ctx context.Context, s *Server) error
	Update(ctx context.Context, s *Server) error
}

// Servers returns a ServerStore for this database.
func (db *DB) Servers() ServerStore {
	return &serverStore{db: db}
}

type serverStore struct {
	db *DB
}

func (st *serverStore) Get(ctx context.Context, profileID int64) (*Server, error) {
	s := &Server{}
	var discovery, poll, timeout int64
	var updatedAt string
	err := st.db.QueryRowContext(ctx, `
		SELECT id, profile_id, host, control_port, discovery_port,
		       discovery_interval, poll_interval, device_timeout,
		       server_name, manufacturer, location, unique_id, updated_at
		FROM servers WHERE profile_id = ?
	`, profileID).Scan(&s.ID, &s.ProfileID, &s.Host, &s.ControlPort, &s.DiscoveryPort,
		&discovery, &poll, &timeout,
		&s.ServerName, &s.Manufacturer, &s.Location, &s.UniqueID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServerNotFound
	}
	if err != nil {
		return nil, err
	}
	s.DiscoveryInterval = time.Duration(discovery) * time.Millisecond
	s.PollInterval = time.Duration(poll) * time.Millisecond
	s.DeviceTimeout = time.Duration(timeout) * time.Millisecond
	s.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return s, nil
}

func (st *serverStore) Create(ctx context.Context, s *Server) error {
	result, err := st.db.ExecContext(ctx, `
		INSERT INTO servers (profile_id, host, control_port, discovery_port,
		                     discovery_interval, poll_interval, device_timeout,
		                     server_name, manufacturer, location, unique_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ProfileID, s.Host, s.ControlPort, s.DiscoveryPort,
		s.DiscoveryInterval.Milliseconds(), s.PollInterval.Milliseconds(), s.DeviceTimeout.Milliseconds(),
		s.ServerName, s.Manufacturer, s.Location, s.UniqueID)
	if err != nil {
		return fmt.Errorf("failed to create server settings: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (st *serverStore) Update(ctx context.Context, s *Server) error {
	result, err := st.db.ExecContext(ctx, `
		UPDATE servers SET host = ?, control_port = ?, discovery_port = ?,
		       discovery_interval = ?, poll_interval = ?, device_timeout = ?,
		       server_name = ?, manufacturer = ?, location = ?,
		       updated_at = datetime('now')
		WHERE profile_id = ?
	`, s.Host, s.ControlPort, s.DiscoveryPort,
		s.DiscoveryInterval.Milliseconds(), s.PollInterval.Milliseconds(), s.DeviceTimeout.Milliseconds(),
		s.ServerName, s.Manufacturer, s.Location, s.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to update server settings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrServerNotFound
	}
	return nil
}
