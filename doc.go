// Package mlcore holds the domain types shared by the dataset and model
// packages: records, column data types and the error model.
//
// Datasets (package dataframe) are stored entirely in a pluggable key value
// connector (package kv and its inmem, bolt and sqlite implementations), and
// models (package model) persist their knowledge base through the same
// connector.
package mlcore
