package application

const readOnlyTx = true
