// Package dataframe implements Dataset, a labelled tabular collection of
// records kept in a kv session instead of process memory.
//
// Rows get dense ids in append order and are never removed; deriving a
// dataset with Subset or Copy starts a new id space at 0. Column and label
// types are inferred as rows arrive and can be rebuilt from scratch with
// RecomputeMetadata.
//
// Datasets are usually built from files with ParseCSV or ParseText.
package dataframe
