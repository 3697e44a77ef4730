// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

// Package fleet declares the corridor tables: the places along the
// corridor, the operators that move freight through it and their trips.
package fleet

import (
	"github.com/corridorhq/corridor/store"
)

// Table names.
const (
	Towns       = "towns"
	Stations    = "stations"
	Checkpoints = "checkpoints"
	Routes      = "routes"
	Companies   = "companies"
	Drivers     = "drivers"
	Vehicles    = "vehicles"
	Trips       = "trips"
	Users       = "users"
	Geocodes    = "geocodes"
)

// Trip statuses.
const (
	TripPending   = "pending"
	TripInTransit = "in-transit"
	TripArrived   = "arrived"
	TripCancelled = "cancelled"
)

func required(name string, kind store.Kind) store.Field {
	return store.Field{Name: name, Kind: kind, Required: true}
}

func text(names ...string) []store.Field {
	out := make([]store.Field, len(names))
	for i, n := range names {
		out[i] = store.Field{Name: n, Kind: store.KindString}
	}

	return out
}

func ref(name, table string) store.Field {
	return store.Field{Name: name, Kind: store.KindRef, Ref: table}
}

func fields(groups ...[]store.Field) []store.Field {
	var out []store.Field
	for _, g := range groups {
		out = append(out, g...)
	}

	return out
}

// Schemas returns fresh copies of every table schema, referenced tables
// first.
func Schemas() []*store.Schema {
	return []*store.Schema{
		{
			Table:      Towns,
			Timestamps: true,
			Fields: []store.Field{
				required("name", store.KindString),
				required("shortName", store.KindString),
				required("country", store.KindString),
				{Name: "coord.lat", Kind: store.KindNumber},
				{Name: "coord.lng", Kind: store.KindNumber},
				{Name: "role", Kind: store.KindString, Enum: []string{"town", "city", "capital-city"}, Default: "town"},
			},
		},
		{
			Table:      Stations,
			Timestamps: true,
			Fields: fields(
				[]store.Field{
					required("name", store.KindString),
					ref("town", Towns),
					{Name: "type", Kind: store.KindString, Default: "station"},
					required("coord.lat", store.KindNumber),
					required("coord.lng", store.KindNumber),
					{Name: "tolerance", Kind: store.KindNumber, Default: 0.0},
					{Name: "radius", Kind: store.KindNumber, Default: 30.0},
					{Name: "geofenceCoordinates", Kind: store.KindArray},
					{Name: "h3Cell", Kind: store.KindString},
				},
				text("contactNo", "address", "description"),
			),
		},
		{
			Table:      Checkpoints,
			Timestamps: true,
			Fields: fields(
				[]store.Field{
					required("name", store.KindString),
					ref("town", Towns),
					required("lat", store.KindNumber),
					required("lng", store.KindNumber),
					required("contactNo", store.KindString),
					{Name: "type", Kind: store.KindString, Default: "checkpoint"},
					{Name: "tolerance", Kind: store.KindNumber, Default: 0.0},
					{Name: "radius", Kind: store.KindNumber, Default: 30.0},
					{Name: "h3Cell", Kind: store.KindString},
				},
				text("description", "address", "category"),
			),
		},
		{
			Table:      Routes,
			Timestamps: true,
			Fields: []store.Field{
				required("name", store.KindString),
				{Name: "code", Kind: store.KindString, Required: true, Unique: true},
				{Name: "startPoint", Kind: store.KindRef, Ref: Stations, Required: true},
				{Name: "endPoint", Kind: store.KindRef, Ref: Stations, Required: true},
				{Name: "stations", Kind: store.KindArray, Ref: Stations, MinItems: 1},
				{Name: "distance", Kind: store.KindNumber},
			},
		},
		{
			Table:      Companies,
			Aliases:    []string{"company"},
			Timestamps: true,
			Fields: fields(
				[]store.Field{
					required("name", store.KindString),
					{Name: "email", Kind: store.KindString, Required: true, Email: true},
					required("mobileNumber", store.KindString),
					ref("town", Towns),
					{Name: "status", Kind: store.KindBool, Default: false},
				},
				text("country", "physicalAddress", "telephoneNumber"),
			),
		},
		{
			Table:      Drivers,
			Timestamps: true,
			Fields: []store.Field{
				required("firstName", store.KindString),
				required("lastName", store.KindString),
				required("driverNumber", store.KindString),
				required("country", store.KindString),
				{Name: "town", Kind: store.KindRef, Ref: Towns, Required: true},
				required("contactNumber", store.KindString),
				{Name: "email", Kind: store.KindString, Required: true, Email: true},
				{Name: "status", Kind: store.KindBool},
				ref("company", Companies),
				{Name: "companies", Kind: store.KindArray, Ref: Companies},
			},
		},
		{
			Table:      Vehicles,
			Timestamps: true,
			Fields: fields(
				[]store.Field{
					required("plateNumber", store.KindString),
					ref("company", Companies),
					{Name: "passengerSeatCount", Kind: store.KindInteger, Required: true, Positive: true},
				},
				text("make", "model", "color", "chassisNumber", "trailerNumber", "description"),
			),
		},
		{
			Table:      Trips,
			Timestamps: true,
			Fields: []store.Field{
				required("type", store.KindString),
				required("bookingNumber", store.KindString),
				required("lockSeal", store.KindString),
				required("sealStamp", store.KindString),
				required("entryNumber", store.KindString),
				required("containerNumber", store.KindString),
				required("containerSize", store.KindString),
				required("originStation", store.KindString),
				required("destinationStation", store.KindString),
				required("agentCode", store.KindString),
				required("importerTPIN", store.KindString),
				required("rctgCarnetNumber", store.KindString),
				required("yellowCard", store.KindString),
				required("departure", store.KindDate),
				ref("route", Routes),
				ref("vehicle", Vehicles),
				ref("driver", Drivers),
				ref("company", Companies),
				{Name: "isLoaded", Kind: store.KindBool, Default: false},
				{
					Name:    "status",
					Kind:    store.KindString,
					Enum:    []string{TripPending, TripInTransit, TripArrived, TripCancelled},
					Default: TripPending,
				},
			},
		},
		{
			Table:      Users,
			Aliases:    []string{"newuser"},
			Timestamps: true,
			Fields: []store.Field{
				required("firstName", store.KindString),
				required("lastName", store.KindString),
				{Name: "email", Kind: store.KindString, Required: true, Email: true, Unique: true},
				required("mobile", store.KindString),
				required("idNumber", store.KindString),
				required("role", store.KindString),
			},
		},
		{
			Table: Geocodes,
			Fields: []store.Field{
				{Name: "address", Kind: store.KindString, Required: true, Unique: true},
				required("lat", store.KindNumber),
				required("lng", store.KindNumber),
				{Name: "formattedAddress", Kind: store.KindString},
				{Name: "provider", Kind: store.KindString},
			},
		},
	}
}

// NewRegistry builds the registry of every corridor table.
func NewRegistry() (*store.Registry, error) {
	return store.NewRegistry(Schemas()...)
}
