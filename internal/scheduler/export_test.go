package scheduler

var JobFromInfo = jobFromInfo
