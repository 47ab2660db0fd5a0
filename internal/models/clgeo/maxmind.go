package clgeo

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
)

// MaxMind lit une base GeoLite2/GeoIP2 City locale
type MaxMind struct {
	reader *geoip2.Reader
}

func NewMaxMind(path string) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ouverture base maxmind %s: %w", path, err)
	}
	return &MaxMind{reader: reader}, nil
}

func (m *MaxMind) Name() string { return "maxmind" }

func (m *MaxMind) Close() error {
	return m.reader.Close()
}

func (m *MaxMind) Lookup(_ context.Context, ip string, accuracy string) (*Location, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}

	if accuracy == AccuracyLow {
		record, err := m.reader.Country(addr)
		if err != nil {
			return nil, err
		}
		if !record.HasData() {
			return nil, ErrNoData
		}
		return &Location{Country: record.Country.Names.English}, nil
	}

	record, err := m.reader.City(addr)
	if err != nil {
		return nil, err
	}
	if !record.HasData() {
		return nil, ErrNoData
	}

	loc := &Location{
		Country: record.Country.Names.English,
		City:    record.City.Names.English,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names.English
	}
	return loc, nil
}
