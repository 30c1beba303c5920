/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

import (
	"github.com/suparena/docstore/registry"
)

// Family is the entity used by the family walkthrough. Families are
// partitioned by last name.
type Family struct {
	ID           string   `json:"id"`
	LastName     string   `json:"LastName"`
	Parents      []Parent `json:"Parents"`
	Children     []Child  `json:"Children"`
	Address      Address  `json:"Address"`
	IsRegistered bool     `json:"IsRegistered"`
}

type Parent struct {
	FamilyName string `json:"FamilyName,omitempty"`
	FirstName  string `json:"FirstName"`
}

type Child struct {
	FamilyName string `json:"FamilyName,omitempty"`
	FirstName  string `json:"FirstName"`
	Gender     string `json:"Gender"`
	Grade      int    `json:"Grade"`
	Pets       []Pet  `json:"Pets,omitempty"`
}

type Pet struct {
	GivenName string `json:"GivenName"`
}

type Address struct {
	State  string `json:"State"`
	County string `json:"County"`
	City   string `json:"City"`
}

// FamilyPartitionKeyPath is the partition key path of the family container.
const FamilyPartitionKeyPath = "/LastName"

func init() {
	registry.RegisterKeyMap[Family](map[string]string{
		registry.KeyID:        "{id}",
		registry.KeyPartition: "{LastName}",
	})
}

// AndersenFamily returns the first sample family.
func AndersenFamily() Family {
	return Family{
		ID:       "Andersen.1",
		LastName: "Andersen",
		Parents: []Parent{
			{FirstName: "Thomas"},
			{FirstName: "Mary Kay"},
		},
		Children: []Child{
			{
				FirstName: "Henriette Thaulow",
				Gender:    "female",
				Grade:     5,
				Pets:      []Pet{{GivenName: "Fluffy"}},
			},
		},
		Address:      Address{State: "WA", County: "King", City: "Seattle"},
		IsRegistered: false,
	}
}

// WakefieldFamily returns the second sample family.
func WakefieldFamily() Family {
	return Family{
		ID:       "Wakefield.7",
		LastName: "Wakefield",
		Parents: []Parent{
			{FamilyName: "Wakefield", FirstName: "Robin"},
			{FamilyName: "Miller", FirstName: "Ben"},
		},
		Children: []Child{
			{
				FamilyName: "Merriam",
				FirstName:  "Jesse",
				Gender:     "female",
				Grade:      8,
				Pets:       []Pet{{GivenName: "Goofy"}, {GivenName: "Shadow"}},
			},
			{
				FamilyName: "Miller",
				FirstName:  "Lisa",
				Gender:     "female",
				Grade:      1,
			},
		},
		Address:      Address{State: "NY", County: "Manhattan", City: "NY"},
		IsRegistered: true,
	}
}
